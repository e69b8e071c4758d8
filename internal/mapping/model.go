package mapping

import "strings"

// Applicability — к чему привязывается набор свойств:
// к экземпляру элемента (Instance) или к типоразмеру (Type).
type Applicability int

const (
	Instance Applicability = iota
	Type
)

// Code возвращает однобуквенный код для текстового формата ("I"/"T").
func (a Applicability) Code() string {
	if a == Type {
		return "T"
	}
	return "I"
}

func (a Applicability) String() string {
	if a == Type {
		return "Type"
	}
	return "Instance"
}

// ParseApplicability принимает код из файла: регистронезависимый
// префикс слова "Instance" или "Type" ("I", "inst", "TYPE" и т.д.).
func ParseApplicability(tok string) (Applicability, bool) {
	t := strings.ToLower(strings.TrimSpace(tok))
	if t == "" {
		return Instance, false
	}
	if strings.HasPrefix("instance", t) {
		return Instance, true
	}
	if strings.HasPrefix("type", t) {
		return Type, true
	}
	return Instance, false
}

// DataType — тип данных IFC-свойства (закрытый набор токенов формата).
type DataType string

const (
	Area                     DataType = "Area"
	Boolean                  DataType = "Boolean"
	ClassificationReference  DataType = "ClassificationReference"
	ColorTemperature         DataType = "ColorTemperature"
	Count                    DataType = "Count"
	Currency                 DataType = "Currency"
	ElectricalCurrent        DataType = "ElectricalCurrent"
	ElectricalEfficacy       DataType = "ElectricalEfficacy"
	ElectricalVoltage        DataType = "ElectricalVoltage"
	Force                    DataType = "Force"
	Frequency                DataType = "Frequency"
	Identifier               DataType = "Identifier"
	Illuminance              DataType = "Illuminance"
	Integer                  DataType = "Integer"
	Label                    DataType = "Label"
	Length                   DataType = "Length"
	Logical                  DataType = "Logical"
	LuminousFlux             DataType = "LuminousFlux"
	LuminousIntensity        DataType = "LuminousIntensity"
	NormalisedRatio          DataType = "NormalisedRatio"
	PlaneAngle               DataType = "PlaneAngle"
	PositiveLength           DataType = "PositiveLength"
	PositivePlaneAngle       DataType = "PositivePlaneAngle"
	PositiveRatio            DataType = "PositiveRatio"
	Power                    DataType = "Power"
	Pressure                 DataType = "Pressure"
	Ratio                    DataType = "Ratio"
	Real                     DataType = "Real"
	Text                     DataType = "Text"
	ThermalTransmittance     DataType = "ThermalTransmittance"
	ThermodynamicTemperature DataType = "ThermodynamicTemperature"
	Volume                   DataType = "Volume"
	VolumetricFlowRate       DataType = "VolumetricFlowRate"
)

// allDataTypes — канонический порядок (для сообщений и справки).
var allDataTypes = []DataType{
	Area, Boolean, ClassificationReference, ColorTemperature, Count,
	Currency, ElectricalCurrent, ElectricalEfficacy, ElectricalVoltage,
	Force, Frequency, Identifier, Illuminance, Integer, Label, Length,
	Logical, LuminousFlux, LuminousIntensity, NormalisedRatio, PlaneAngle,
	PositiveLength, PositivePlaneAngle, PositiveRatio, Power, Pressure,
	Ratio, Real, Text, ThermalTransmittance, ThermodynamicTemperature,
	Volume, VolumetricFlowRate,
}

// индекс для регистронезависимого разбора токена типа
var dataTypeIndex = func() map[string]DataType {
	m := make(map[string]DataType, len(allDataTypes))
	for _, dt := range allDataTypes {
		m[strings.ToLower(string(dt))] = dt
	}
	return m
}()

// ParseDataType разбирает токен типа данных без учёта регистра.
func ParseDataType(tok string) (DataType, bool) {
	dt, ok := dataTypeIndex[strings.ToLower(strings.TrimSpace(tok))]
	return dt, ok
}

// DataTypes возвращает копию полного набора допустимых типов.
func DataTypes() []DataType {
	out := make([]DataType, len(allDataTypes))
	copy(out, allDataTypes)
	return out
}

// Property — одно свойство внутри набора.
type Property struct {
	Name string
	Type DataType
	// SourceAlias — имя исходного параметра модели; пустая строка
	// означает «совпадает с именем свойства».
	SourceAlias string
}

// EffectiveAlias возвращает фактическое имя исходного поля.
func (p Property) EffectiveAlias() string {
	if p.SourceAlias != "" {
		return p.SourceAlias
	}
	return p.Name
}

// PropertySet — именованный набор свойств из файла маппинга.
// После загрузки не изменяется.
type PropertySet struct {
	Name          string
	Applicability Applicability
	Categories    []string
	Properties    []Property
}

// AppliesTo сообщает, применим ли набор к категории в данном режиме.
func (s *PropertySet) AppliesTo(category string, app Applicability) bool {
	if s.Applicability != app {
		return false
	}
	for _, c := range s.Categories {
		if c == category {
			return true
		}
	}
	return false
}

// File — разобранный файл маппинга: упорядоченный список наборов.
type File struct {
	Sets []*PropertySet
}

// Set возвращает набор по имени или nil.
func (f *File) Set(name string) *PropertySet {
	for _, s := range f.Sets {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// ResolvedProperty — свойство, подготовленное для стороны экспорта:
// алиас уже разрешён в фактическое имя исходного поля.
type ResolvedProperty struct {
	Set         string
	Name        string
	Type        DataType
	SourceField string
}

// PropertiesFor возвращает свойства всех наборов, применимых к категории
// в указанном режиме. Порядок — как в файле: сперва наборы, внутри —
// свойства.
func (f *File) PropertiesFor(category string, app Applicability) []ResolvedProperty {
	var out []ResolvedProperty
	for _, s := range f.Sets {
		if !s.AppliesTo(category, app) {
			continue
		}
		for _, p := range s.Properties {
			out = append(out, ResolvedProperty{
				Set:         s.Name,
				Name:        p.Name,
				Type:        p.Type,
				SourceField: p.EffectiveAlias(),
			})
		}
	}
	return out
}
