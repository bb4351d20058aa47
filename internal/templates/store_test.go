package templates

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"staff_srv/internal/docgen"
	"staff_srv/internal/models"
	"staff_srv/internal/storage"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func setupTestStore(t *testing.T) (*Store, storage.Storage) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Template{}))

	files, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: t.TempDir()}, setupTestLogger())
	require.NoError(t, err)

	return NewStoreFromDB(db, files, setupTestLogger()), files
}

func workbook(t *testing.T, cells map[string]string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for cell, value := range cells {
		require.NoError(t, f.SetCellValue("Sheet1", cell, value))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestStoreCreateAndDefinition(t *testing.T) {
	ctx := context.Background()
	store, files := setupTestStore(t)
	data := workbook(t, map[string]string{"A1": "Заявка", "B15": "#surname #name"})

	tpl, err := store.Create(ctx, CreateParams{
		Name:        "  Заявка ВИСП ",
		RequestType: "visp-create",
		FileName:    `C:\forms\visp.xlsx`,
		File:        data,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, tpl.ID)
	assert.Equal(t, "Заявка ВИСП", tpl.Name)
	assert.Equal(t, "visp", tpl.RequestCategory)
	assert.Equal(t, "visp.xlsx", tpl.FileName)
	assert.Equal(t, "templates/"+tpl.ID+"/visp.xlsx", tpl.FileKey)
	assert.JSONEq(t, `{"version":2,"mode":"markers"}`, string(tpl.FieldMapping))

	exists, err := files.Exists(ctx, tpl.FileKey)
	require.NoError(t, err)
	assert.True(t, exists)

	def, err := store.Definition(ctx, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, data, def.Workbook)
	assert.Empty(t, def.Mapping)
	assert.Equal(t, "visp-create", def.RequestType)
}

func TestStoreCreateValidation(t *testing.T) {
	ctx := context.Background()
	store, _ := setupTestStore(t)
	withMarkers := workbook(t, map[string]string{"B15": "#surname"})

	tests := []struct {
		name   string
		params CreateParams
		want   error
	}{
		{"no name", CreateParams{File: withMarkers}, ErrValidation},
		{"no file", CreateParams{Name: "x"}, ErrValidation},
		{"unknown request type", CreateParams{Name: "x", RequestType: "nope", File: withMarkers}, ErrValidation},
		{"not a workbook", CreateParams{Name: "x", File: []byte("plain text")}, docgen.ErrTemplateFileMissing},
		{"no markers", CreateParams{Name: "x", File: workbook(t, map[string]string{"A1": "Заголовок"})}, docgen.ErrTemplateHasNoPlaceholders},
		{"unknown marker", CreateParams{Name: "x", File: workbook(t, map[string]string{"B15": "#surname", "C15": "#salary"})}, docgen.ErrUnknownFieldKey},
		{"bad mapping", CreateParams{Name: "x", File: withMarkers, Mapping: json.RawMessage(`[{"fields":["name"]}]`)}, docgen.ErrInvalidMapping},
		{"bad cell", CreateParams{Name: "x", File: withMarkers, Mapping: json.RawMessage(`[{"cell":"15B","fields":["name"]}]`)}, docgen.ErrInvalidCellAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Create(ctx, tt.params)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	list, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStoreListByRequestType(t *testing.T) {
	ctx := context.Background()
	store, _ := setupTestStore(t)
	data := workbook(t, map[string]string{"B2": "#surname"})

	_, err := store.Create(ctx, CreateParams{Name: "a", RequestType: "visp-create", File: data})
	require.NoError(t, err)
	_, err = store.Create(ctx, CreateParams{Name: "b", RequestType: "ibd-r", File: data})
	require.NoError(t, err)

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	visp, err := store.List(ctx, "visp-create")
	require.NoError(t, err)
	require.Len(t, visp, 1)
	assert.Equal(t, "a", visp[0].Name)
}

func TestStoreUpdateReplacesFile(t *testing.T) {
	ctx := context.Background()
	store, files := setupTestStore(t)

	tpl, err := store.Create(ctx, CreateParams{
		Name:     "old",
		FileName: "old.xlsx",
		File:     workbook(t, map[string]string{"B2": "#surname"}),
	})
	require.NoError(t, err)
	oldKey := tpl.FileKey

	newName := "new"
	startRow := 4
	updated, err := store.Update(ctx, tpl.ID, UpdateParams{
		Name:     &newName,
		Mapping:  json.RawMessage(`{"fullName":"B4","office":"D4"}`),
		StartRow: &startRow,
		FileName: "new.xlsx",
		File:     workbook(t, map[string]string{"A1": "Шапка", "B4": "", "D4": ""}),
	})
	require.NoError(t, err)

	assert.Equal(t, "new", updated.Name)
	assert.Equal(t, 4, updated.StartRow)
	assert.Equal(t, "templates/"+tpl.ID+"/new.xlsx", updated.FileKey)

	exists, err := files.Exists(ctx, oldKey)
	require.NoError(t, err)
	assert.False(t, exists, "previous file is removed")

	def, err := store.Definition(ctx, tpl.ID)
	require.NoError(t, err)
	require.Len(t, def.Mapping, 2)
	assert.Equal(t, docgen.ExplicitMultiField{
		Cell:      "D4",
		Fields:    []docgen.FieldKey{docgen.FieldOffice, docgen.FieldPhone},
		Separator: ", ",
	}, def.Mapping[1])
}

// failingRepository пишет все, кроме обновления шаблона.
type failingRepository struct {
	*GormRepository
}

func (r failingRepository) Update(ctx context.Context, t *models.Template) error {
	return errors.New("database is locked")
}

func TestStoreUpdateSameFileNameKeepsPreviousUntilCommit(t *testing.T) {
	ctx := context.Background()
	store, files := setupTestStore(t)

	tpl, err := store.Create(ctx, CreateParams{
		Name:     "visp",
		FileName: "visp.xlsx",
		File:     workbook(t, map[string]string{"B2": "#surname"}),
	})
	require.NoError(t, err)
	oldKey := tpl.FileKey

	replacement := workbook(t, map[string]string{"B3": "#surname #name"})
	updated, err := store.Update(ctx, tpl.ID, UpdateParams{FileName: "visp.xlsx", File: replacement})
	require.NoError(t, err)

	assert.Equal(t, "visp.xlsx", updated.FileName)
	assert.NotEqual(t, oldKey, updated.FileKey)
	assert.True(t, strings.HasPrefix(updated.FileKey, "templates/"+tpl.ID+"/"))

	exists, err := files.Exists(ctx, oldKey)
	require.NoError(t, err)
	assert.False(t, exists)

	data, err := storage.ReadAll(ctx, files, updated.FileKey)
	require.NoError(t, err)
	assert.Equal(t, replacement, data)
}

func TestStoreUpdateRemovesNewFileWhenRowUpdateFails(t *testing.T) {
	ctx := context.Background()
	store, files := setupTestStore(t)

	original := workbook(t, map[string]string{"B2": "#surname"})
	tpl, err := store.Create(ctx, CreateParams{Name: "visp", FileName: "visp.xlsx", File: original})
	require.NoError(t, err)

	broken := NewStore(failingRepository{store.repo.(*GormRepository)}, files, setupTestLogger())
	for _, name := range []string{"visp.xlsx", "other.xlsx"} {
		_, err = broken.Update(ctx, tpl.ID, UpdateParams{
			FileName: name,
			File:     workbook(t, map[string]string{"C5": "#position"}),
		})
		require.Error(t, err, name)

		listed, err := files.List(ctx, "templates/"+tpl.ID+"/")
		require.NoError(t, err)
		require.Len(t, listed, 1, name)
		assert.Equal(t, tpl.FileKey, listed[0].Key, name)

		data, err := storage.ReadAll(ctx, files, tpl.FileKey)
		require.NoError(t, err)
		assert.Equal(t, original, data, name)
	}
}

func TestStoreUpdateKeepsFileWhenOnlyMetadataChanges(t *testing.T) {
	ctx := context.Background()
	store, _ := setupTestStore(t)

	tpl, err := store.Create(ctx, CreateParams{Name: "a", File: workbook(t, map[string]string{"B2": "#surname"})})
	require.NoError(t, err)

	rt := "soop"
	updated, err := store.Update(ctx, tpl.ID, UpdateParams{RequestType: &rt})
	require.NoError(t, err)
	assert.Equal(t, "systems", updated.RequestCategory)
	assert.Equal(t, tpl.FileKey, updated.FileKey)

	_, err = store.Update(ctx, "missing", UpdateParams{RequestType: &rt})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreDelete(t *testing.T) {
	ctx := context.Background()
	store, files := setupTestStore(t)

	tpl, err := store.Create(ctx, CreateParams{Name: "a", File: workbook(t, map[string]string{"B2": "#surname"})})
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, tpl.ID))

	_, err = store.Get(ctx, tpl.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	exists, err := files.Exists(ctx, tpl.FileKey)
	require.NoError(t, err)
	assert.False(t, exists)

	assert.ErrorIs(t, store.Delete(ctx, tpl.ID), ErrNotFound)
}

func TestStoreDefinitionMissingFile(t *testing.T) {
	ctx := context.Background()
	store, files := setupTestStore(t)

	tpl, err := store.Create(ctx, CreateParams{Name: "a", File: workbook(t, map[string]string{"B2": "#surname"})})
	require.NoError(t, err)
	require.NoError(t, files.Delete(ctx, tpl.FileKey))

	_, err = store.Definition(ctx, tpl.ID)
	assert.ErrorIs(t, err, docgen.ErrTemplateFileMissing)
}

func TestStoreDefinitionUpgradesStoredLegacyMapping(t *testing.T) {
	ctx := context.Background()
	store, _ := setupTestStore(t)

	tpl, err := store.Create(ctx, CreateParams{Name: "a", File: workbook(t, map[string]string{"B2": "#surname"})})
	require.NoError(t, err)

	// строка, записанная прежней версией сервиса
	tpl.FieldMapping = models.RawJSON(`[{"cell":"B2","fieldType":"employee","employeeField":"position"}]`)
	require.NoError(t, store.repo.Update(ctx, tpl))

	def, err := store.Definition(ctx, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, []docgen.FieldMapping{docgen.ExplicitSingleField{Cell: "B2", Field: docgen.FieldPosition}}, def.Mapping)
}

func TestCleanFileName(t *testing.T) {
	assert.Equal(t, "form.xlsx", cleanFileName("form.xlsx"))
	assert.Equal(t, "form.xlsx", cleanFileName("../../form.xlsx"))
	assert.Equal(t, "form.XLSX", cleanFileName("form.XLSX"))
	assert.Equal(t, "form.xls.xlsx", cleanFileName("form.xls"))
	assert.Equal(t, "template.xlsx", cleanFileName(""))
}
