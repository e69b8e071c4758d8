package mapping

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSingleSet(t *testing.T) {
	in := "PropertySet:\tRevit_mapping\tI\tIfcElement\n" +
		"\tCategory\tText\tКатегория\n"

	f, err := Parse(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, f.Sets, 1)

	set := f.Sets[0]
	assert.Equal(t, "Revit_mapping", set.Name)
	assert.Equal(t, Instance, set.Applicability)
	assert.Equal(t, []string{"IfcElement"}, set.Categories)

	require.Len(t, set.Properties, 1)
	p := set.Properties[0]
	assert.Equal(t, "Category", p.Name)
	assert.Equal(t, Text, p.Type)
	assert.Equal(t, "Категория", p.SourceAlias)
	assert.Equal(t, "Категория", p.EffectiveAlias())
}

func TestParseCountsAndOrder(t *testing.T) {
	in := strings.Join([]string{
		"# заголовочный комментарий",
		"",
		"PropertySet:\tPset_Walls\tI\tIfcWall,IfcWallStandardCase",
		"\tFireRating\tLabel",
		"   # комментарий с отступом",
		"\tThermalTransmittance\tThermalTransmittance\tU-Value",
		"",
		"PropertySet:\tPset_Types\tT\tIfcDoor",
		"\tReference\tIdentifier",
	}, "\n")

	f, err := Parse(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, f.Sets, 2)

	assert.Equal(t, "Pset_Walls", f.Sets[0].Name)
	assert.Len(t, f.Sets[0].Properties, 2)
	assert.Equal(t, []string{"IfcWall", "IfcWallStandardCase"}, f.Sets[0].Categories)

	assert.Equal(t, "Pset_Types", f.Sets[1].Name)
	assert.Equal(t, Type, f.Sets[1].Applicability)
	assert.Len(t, f.Sets[1].Properties, 1)

	// порядок свойств — как в файле
	assert.Equal(t, "FireRating", f.Sets[0].Properties[0].Name)
	assert.Equal(t, "ThermalTransmittance", f.Sets[0].Properties[1].Name)
}

func TestParseDefaultAlias(t *testing.T) {
	in := "PropertySet:\tPset\tI\tIfcElement\n\tLevel\tLength\n"

	f, err := Parse(strings.NewReader(in))
	require.NoError(t, err)

	p := f.Sets[0].Properties[0]
	assert.Empty(t, p.SourceAlias)
	assert.Equal(t, "Level", p.EffectiveAlias())
}

func TestParseInvalidDataType(t *testing.T) {
	in := "PropertySet:\tPset\tI\tIfcElement\n\tFoo\tBogusType\n"

	_, err := Parse(strings.NewReader(in))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidDataType)

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 2, perr.Line)
	assert.Contains(t, perr.Error(), "BogusType")
}

func TestParsePropertyBeforeSet(t *testing.T) {
	in := "# комментарий\n\tFoo\tText\n"

	_, err := Parse(strings.NewReader(in))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedMapping)

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 2, perr.Line)
}

func TestParseDuplicateSetName(t *testing.T) {
	in := strings.Join([]string{
		"PropertySet:\tPset\tI\tIfcElement",
		"\tA\tText",
		"PropertySet:\tPset\tT\tIfcDoor",
	}, "\n")

	_, err := Parse(strings.NewReader(in))
	assert.ErrorIs(t, err, ErrDuplicatePropertySetName)
}

func TestParseDuplicatePropertyName(t *testing.T) {
	in := strings.Join([]string{
		"PropertySet:\tPset\tI\tIfcElement",
		"\tA\tText",
		"\tA\tLabel",
	}, "\n")

	_, err := Parse(strings.NewReader(in))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicatePropertyName)

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 3, perr.Line)
}

func TestParseMalformedSetLine(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"too few fields", "PropertySet:\tPset\tI"},
		{"too many fields", "PropertySet:\tPset\tI\tIfcElement\textra"},
		{"bad applicability", "PropertySet:\tPset\tX\tIfcElement"},
		{"empty categories", "PropertySet:\tPset\tI\t ,  ,"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tc.in))
			assert.ErrorIs(t, err, ErrMalformedMapping)
		})
	}
}

func TestParseMalformedPropertyLine(t *testing.T) {
	in := "PropertySet:\tPset\tI\tIfcElement\n\tA\tText\tAlias\textra\n"

	_, err := Parse(strings.NewReader(in))
	assert.ErrorIs(t, err, ErrMalformedMapping)
}

func TestParseApplicabilityPrefix(t *testing.T) {
	cases := []struct {
		code string
		want Applicability
	}{
		{"I", Instance},
		{"i", Instance},
		{"Inst", Instance},
		{"instance", Instance},
		{"T", Type},
		{"TYPE", Type},
		{"ty", Type},
	}
	for _, tc := range cases {
		in := "PropertySet:\tPset\t" + tc.code + "\tIfcElement\n"
		f, err := Parse(strings.NewReader(in))
		require.NoError(t, err, "code %q", tc.code)
		assert.Equal(t, tc.want, f.Sets[0].Applicability, "code %q", tc.code)
	}
}

func TestParseDataTypeCaseInsensitive(t *testing.T) {
	dt, ok := ParseDataType("volumetricflowrate")
	require.True(t, ok)
	assert.Equal(t, VolumetricFlowRate, dt)

	_, ok = ParseDataType("NotAType")
	assert.False(t, ok)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mapping.txt")
	content := "PropertySet:\tPset\tI\tIfcElement\n\tFoo\tBogusType\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := Load(path)
	require.Error(t, err)

	// путь попадает в текст ошибки вместе с номером строки
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, path, perr.Path)
	assert.Contains(t, perr.Error(), "mapping.txt:2")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "no-such.txt"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestPropertiesFor(t *testing.T) {
	in := strings.Join([]string{
		"PropertySet:\tCommon\tI\tIfcWall,IfcDoor",
		"\tCategory\tText\tКатегория",
		"\tLevel\tLength",
		"PropertySet:\tDoorsOnly\tI\tIfcDoor",
		"\tWidth\tPositiveLength",
		"PropertySet:\tDoorTypes\tT\tIfcDoor",
		"\tReference\tIdentifier",
	}, "\n")

	f, err := Parse(strings.NewReader(in))
	require.NoError(t, err)

	got := f.PropertiesFor("IfcDoor", Instance)
	require.Len(t, got, 3)
	assert.Equal(t, "Common", got[0].Set)
	assert.Equal(t, "Категория", got[0].SourceField)
	assert.Equal(t, "Level", got[1].SourceField)
	assert.Equal(t, "Width", got[2].Name)

	// типовой режим отбирает только T-наборы
	typed := f.PropertiesFor("IfcDoor", Type)
	require.Len(t, typed, 1)
	assert.Equal(t, "Reference", typed[0].Name)

	assert.Empty(t, f.PropertiesFor("IfcWindow", Instance))
}
