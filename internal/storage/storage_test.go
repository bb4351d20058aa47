package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"staff_srv/internal/config"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newLocal(t *testing.T) *LocalStorage {
	t.Helper()
	s, err := NewLocalStorage(LocalConfig{BasePath: t.TempDir()}, setupTestLogger())
	require.NoError(t, err)
	return s
}

func TestLocalStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newLocal(t)
	key := s.JoinPath("templates", "abc", "form.xlsx")
	assert.Equal(t, "templates/abc/form.xlsx", key)

	require.NoError(t, s.Save(ctx, key, strings.NewReader("first")))
	require.NoError(t, s.Save(ctx, key, strings.NewReader("second")))

	data, err := ReadAll(ctx, s, key)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	exists, err := s.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	meta, err := s.GetMetadata(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(6), meta.Size)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", meta.ContentType)

	files, err := s.List(ctx, "templates/")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, key, files[0].Key)

	require.NoError(t, s.Delete(ctx, key))
	exists, err = s.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)

	// повторное удаление не ошибка
	require.NoError(t, s.Delete(ctx, key))
}

func TestLocalStorageNotFound(t *testing.T) {
	ctx := context.Background()
	s := newLocal(t)

	_, err := s.Get(ctx, "templates/missing.xlsx")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetMetadata(ctx, "templates/missing.xlsx")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		key   string
		valid bool
	}{
		{"templates/1/form.xlsx", true},
		{"templates/1/..hidden.xlsx", true},
		{"", false},
		{"/etc/passwd", false},
		{"templates/../../etc/passwd", false},
		{`templates\..\secret`, false},
		{strings.Repeat("a", maxKeyLength+1), false},
	}

	for _, tt := range tests {
		err := validateKey(tt.key)
		if tt.valid {
			assert.NoError(t, err, tt.key)
		} else {
			assert.Error(t, err, tt.key)
		}
	}
}

// MockStorage is a mock implementation of Storage
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Save(ctx context.Context, key string, reader io.Reader) error {
	args := m.Called(ctx, key, reader)
	return args.Error(0)
}

func (m *MockStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, key)
	if rc, ok := args.Get(0).(io.ReadCloser); ok {
		return rc, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStorage) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockStorage) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockStorage) GetMetadata(ctx context.Context, key string) (*FileMetadata, error) {
	args := m.Called(ctx, key)
	if meta, ok := args.Get(0).(*FileMetadata); ok {
		return meta, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStorage) List(ctx context.Context, prefix string) ([]FileInfo, error) {
	args := m.Called(ctx, prefix)
	if files, ok := args.Get(0).([]FileInfo); ok {
		return files, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStorage) JoinPath(elem ...string) string {
	return strings.Join(elem, "/")
}

func (m *MockStorage) ValidateKey(key string) error {
	return validateKey(key)
}

func TestRetryMiddlewareRetriesTransientErrors(t *testing.T) {
	ctx := context.Background()
	inner := new(MockStorage)
	inner.On("Get", ctx, "k").Return(nil, errors.New("connection reset")).Twice()
	inner.On("Get", ctx, "k").Return(io.NopCloser(bytes.NewReader([]byte("ok"))), nil).Once()

	s := NewRetryMiddleware(inner, 3, time.Millisecond, setupTestLogger())

	rc, err := s.Get(ctx, "k")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "ok", string(data))
	inner.AssertNumberOfCalls(t, "Get", 3)
}

func TestRetryMiddlewareStopsOnNotFound(t *testing.T) {
	ctx := context.Background()
	inner := new(MockStorage)
	inner.On("Get", ctx, "k").Return(nil, ErrNotFound)

	s := NewRetryMiddleware(inner, 3, time.Millisecond, setupTestLogger())

	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
	inner.AssertNumberOfCalls(t, "Get", 1)
}

func TestRetryMiddlewareGivesUp(t *testing.T) {
	ctx := context.Background()
	inner := new(MockStorage)
	inner.On("Delete", ctx, "k").Return(errors.New("timeout"))

	s := NewRetryMiddleware(inner, 2, time.Millisecond, setupTestLogger())

	err := s.Delete(ctx, "k")
	assert.EqualError(t, err, "timeout")
	inner.AssertNumberOfCalls(t, "Delete", 3)
}

func TestValidationMiddlewareRejectsBadKeys(t *testing.T) {
	inner := new(MockStorage)
	s := NewValidationMiddleware(inner)

	err := s.Save(context.Background(), "../escape.xlsx", strings.NewReader("x"))
	assert.Error(t, err)
	inner.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
}

type recordingObserver struct {
	ops []string
}

func (r *recordingObserver) ObserveStorage(operation string, err error) {
	status := "ok"
	if err != nil {
		status = "err"
	}
	r.ops = append(r.ops, operation+":"+status)
}

func TestMetricsMiddleware(t *testing.T) {
	ctx := context.Background()
	obs := &recordingObserver{}
	s := NewMetricsMiddleware(newLocal(t), obs)

	require.NoError(t, s.Save(ctx, "a.xlsx", strings.NewReader("x")))
	_, err := s.Get(ctx, "b.xlsx")
	require.Error(t, err)
	require.NoError(t, s.Delete(ctx, "a.xlsx"))

	assert.Equal(t, []string{"save:ok", "get:err", "delete:ok"}, obs.ops)
}

func TestStorageBuilder(t *testing.T) {
	cfg := config.Config{Storage: config.Storage{Type: StorageTypeLocal, BasePath: t.TempDir()}}
	obs := &recordingObserver{}

	s, err := NewStorageBuilder(cfg, setupTestLogger()).WithObserver(obs).Build(context.Background())
	require.NoError(t, err)

	require.NoError(t, s.Save(context.Background(), "templates/x.xlsx", strings.NewReader("x")))
	assert.Error(t, s.Save(context.Background(), "/abs.xlsx", strings.NewReader("x")))
	assert.Equal(t, []string{"save:ok"}, obs.ops)

	_, err = NewStorageBuilder(config.Config{Storage: config.Storage{Type: "ftp"}}, setupTestLogger()).Build(context.Background())
	assert.Error(t, err)
}

func TestNewS3StorageValidation(t *testing.T) {
	_, err := NewS3Storage(context.Background(), S3Config{Region: "us-east-1"}, setupTestLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket")

	_, err = NewS3Storage(context.Background(), S3Config{Region: "us-east-1", Bucket: "b", AccessKey: "ak"}, setupTestLogger())
	require.Error(t, err)
}
