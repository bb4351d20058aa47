package templates

import (
	"encoding/json"
	"errors"
	"testing"

	"staff_srv/internal/docgen"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpgradeMappingEmptyMeansMarkers(t *testing.T) {
	for _, raw := range []string{"", "  ", "null", "[]", `{"version":2,"mode":"markers"}`} {
		mappings, _, err := UpgradeMapping([]byte(raw))
		require.NoError(t, err, raw)
		assert.Empty(t, mappings, raw)

		strategy, err := docgen.SelectStrategy(mappings)
		require.NoError(t, err)
		assert.Equal(t, docgen.StrategyMarkers, strategy)
	}
}

func TestUpgradeMappingLegacyObject(t *testing.T) {
	raw := `{"fullName":"B15","position":"C15","department":"D15","address":"E15","office":"F15","sudisLogin":"G15"}`

	mappings, version, err := UpgradeMapping([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, 0, version)

	assert.Equal(t, []docgen.FieldMapping{
		docgen.ExplicitMultiField{
			Cell:      "B15",
			Fields:    []docgen.FieldKey{docgen.FieldSurname, docgen.FieldName, docgen.FieldPatronymic},
			Separator: " ",
		},
		docgen.ExplicitSingleField{Cell: "C15", Field: docgen.FieldPosition},
		docgen.ExplicitSingleField{Cell: "D15", Field: docgen.FieldDepartment},
		docgen.ExplicitSingleField{Cell: "E15", Field: docgen.FieldAddress},
		docgen.ExplicitMultiField{
			Cell:      "F15",
			Fields:    []docgen.FieldKey{docgen.FieldOffice, docgen.FieldPhone},
			Separator: ", ",
		},
		docgen.ExplicitSingleField{Cell: "G15", Field: docgen.FieldLogin},
	}, mappings)
}

func TestUpgradeMappingLegacyObjectUnknownKey(t *testing.T) {
	_, _, err := UpgradeMapping([]byte(`{"fullName":"B15","salary":"C15"}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, docgen.ErrInvalidMapping))
	assert.True(t, errors.Is(err, docgen.ErrUnknownFieldKey))
}

func TestUpgradeMappingLegacyArray(t *testing.T) {
	raw := `[
		{"id":"1","cell":"B15","fieldType":"employee","employeeField":"last_name"},
		{"id":"2","cell":"C15","fieldType":"employee","employeeFields":["first_name","middle_name"]},
		{"id":"3","cell":"D15","fields":["office","phone"],"separator":", "},
		{"id":"4","cell":"E15","fieldType":"custom","customText":"Согласовано"},
		{"id":"5","cell":"F15"}
	]`

	mappings, version, err := UpgradeMapping([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, 1, version)

	assert.Equal(t, []docgen.FieldMapping{
		docgen.ExplicitSingleField{Cell: "B15", Field: docgen.FieldSurname},
		docgen.ExplicitMultiField{Cell: "C15", Fields: []docgen.FieldKey{docgen.FieldName, docgen.FieldPatronymic}, Separator: " "},
		docgen.ExplicitMultiField{Cell: "D15", Fields: []docgen.FieldKey{docgen.FieldOffice, docgen.FieldPhone}, Separator: ", "},
		docgen.Literal{Cell: "E15", Text: "Согласовано"},
		docgen.ExplicitSingleField{Cell: "F15", Field: docgen.FieldSurname},
	}, mappings)
}

func TestUpgradeMappingRejectsEntryWithoutCell(t *testing.T) {
	_, _, err := UpgradeMapping([]byte(`[{"fieldType":"employee","employeeField":"position"}]`))
	assert.ErrorIs(t, err, docgen.ErrInvalidMapping)
}

func TestUpgradeMappingErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"not json", `{`, docgen.ErrInvalidMapping},
		{"scalar", `42`, docgen.ErrInvalidMapping},
		{"future version", `{"version":3,"mode":"explicit"}`, docgen.ErrInvalidMapping},
		{"unknown mode", `{"version":2,"mode":"magic"}`, docgen.ErrInvalidMapping},
		{"explicit without cells", `{"version":2,"mode":"explicit"}`, docgen.ErrInvalidMapping},
		{"markers with cells", `{"version":2,"mode":"markers","cells":[{"cell":"A1","fields":["name"]}]}`, docgen.ErrConflictingMapping},
		{"unknown field", `{"version":2,"mode":"explicit","cells":[{"cell":"A1","fields":["salary"]}]}`, docgen.ErrUnknownFieldKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := UpgradeMapping([]byte(tt.raw))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestEncodeMappingCurrentVersion(t *testing.T) {
	mappings := []docgen.FieldMapping{
		docgen.ExplicitSingleField{Cell: "B15", Field: docgen.FieldSurname},
		docgen.ExplicitMultiField{Cell: "D15", Fields: []docgen.FieldKey{docgen.FieldOffice, docgen.FieldPhone}, Separator: ", "},
		docgen.Literal{Cell: "E15", Text: ""},
	}

	raw, err := EncodeMapping(mappings)
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.EqualValues(t, CurrentMappingVersion, doc["version"])
	assert.Equal(t, "explicit", doc["mode"])

	decoded, version, err := UpgradeMapping(raw)
	require.NoError(t, err)
	assert.Equal(t, CurrentMappingVersion, version)
	assert.Equal(t, mappings, decoded)
}

func TestEncodeMappingMarkers(t *testing.T) {
	raw, err := EncodeMapping([]docgen.FieldMapping{docgen.MarkerBased{}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":2,"mode":"markers"}`, string(raw))

	_, err = EncodeMapping([]docgen.FieldMapping{docgen.MarkerBased{}, docgen.Literal{Cell: "A1"}})
	assert.ErrorIs(t, err, docgen.ErrConflictingMapping)
}

func TestNormalizeMappingUpgradesLegacy(t *testing.T) {
	raw, err := NormalizeMapping([]byte(`[{"cell":"B3","fields":["position"]}]`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":2,"mode":"explicit","cells":[{"cell":"B3","fields":["position"]}]}`, string(raw))
}
