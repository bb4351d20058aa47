package docgen

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ivanov = Employee{
	ID:         1,
	Surname:    "Ivanov",
	Name:       "Ivan",
	Patronymic: "Ivanovich",
	Position:   "Engineer",
	Rank:       "Captain",
	Service:    "IT",
	Department: "Support",
	Address:    "Lenina 1",
	Office:     "101",
	Phone:      "+7-1",
	Login:      "ivanov_ii",
	Email:      "ivanov_ii@mvd.ru",
}

func TestResolve(t *testing.T) {
	tests := []struct {
		key  FieldKey
		want string
	}{
		{FieldSurname, "Ivanov"},
		{FieldName, "Ivan"},
		{FieldPatronymic, "Ivanovich"},
		{FieldPosition, "Engineer"},
		{FieldRank, "Captain"},
		{FieldService, "IT"},
		{FieldDepartment, "Support"},
		{FieldAddress, "Lenina 1"},
		{FieldOffice, "101"},
		{FieldPhone, "+7-1"},
		{FieldLogin, "ivanov_ii"},
		{FieldEmail, "ivanov_ii@mvd.ru"},
		{"LAST_NAME", "Ivanov"},
		{"login", "ivanov_ii"},
		{"official_email", "ivanov_ii@mvd.ru"},
	}

	for _, tt := range tests {
		t.Run(string(tt.key), func(t *testing.T) {
			got, err := Resolve(ivanov, tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveUnknownKey(t *testing.T) {
	_, err := Resolve(ivanov, "salary")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownFieldKey))

	var ge *Error
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, "salary", ge.Key)
}

func TestResolveEmptyField(t *testing.T) {
	got, err := Resolve(Employee{Surname: "Petrov"}, FieldPatronymic)
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestSubstitute(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"two markers", "#surname #name", "Ivanov Ivan"},
		{"separators kept", "#surname, #name (#position)", "Ivanov, Ivan (Engineer)"},
		{"case insensitive", "#SURNAME #Name", "Ivanov Ivan"},
		{"no markers", "Список сотрудников", "Список сотрудников"},
		{"escaped hash", "##surname", "#surname"},
		{"hash before digit", "каб. #1", "каб. #1"},
		{"hash before cyrillic", "#Кабинет", "#Кабинет"},
		{"trailing hash", "C#", "C#"},
		{"underscore key", "#sudis_login@mvd.ru", "ivanov_ii@mvd.ru"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Substitute(tt.text, ivanov)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSubstituteUnknownKey(t *testing.T) {
	got, err := Substitute("#surname #salary", ivanov)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownFieldKey))
	assert.Empty(t, got)
}

func TestSubstituteRejectsAliases(t *testing.T) {
	for _, text := range []string{"#login", "#last_name", "#official_email"} {
		t.Run(text, func(t *testing.T) {
			_, err := Substitute(text, ivanov)
			assert.True(t, errors.Is(err, ErrUnknownFieldKey))

			_, err = Markers(text)
			assert.True(t, errors.Is(err, ErrUnknownFieldKey))
			assert.False(t, HasMarkers(text))
		})
	}

	// В сопоставлениях псевдонимы по-прежнему принимаются.
	key, err := ParseFieldKey("login")
	require.NoError(t, err)
	assert.Equal(t, FieldLogin, key)
}

func TestSubstituteGreedyIdentifier(t *testing.T) {
	_, err := Substitute("#names", ivanov)
	assert.True(t, errors.Is(err, ErrUnknownFieldKey))
}

func TestSubstituteIsDeterministic(t *testing.T) {
	first, err := Substitute("#surname #name #patronymic", ivanov)
	require.NoError(t, err)
	second, err := Substitute("#surname #name #patronymic", ivanov)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestMarkers(t *testing.T) {
	keys, err := Markers("#surname, #name / #office")
	require.NoError(t, err)
	assert.Equal(t, []FieldKey{FieldSurname, FieldName, FieldOffice}, keys)

	keys, err = Markers("без маркеров ##tag")
	require.NoError(t, err)
	assert.Empty(t, keys)

	_, err = Markers("#unknown")
	assert.True(t, errors.Is(err, ErrUnknownFieldKey))
}

func TestHasMarkers(t *testing.T) {
	assert.True(t, HasMarkers("#surname"))
	assert.True(t, HasMarkers("ФИО: #Surname"))
	assert.False(t, HasMarkers("##surname"))
	assert.False(t, HasMarkers("#hashtag"))
	assert.False(t, HasMarkers("№ 15"))
	assert.False(t, HasMarkers(""))
}
