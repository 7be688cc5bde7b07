package domain

// Schema — декларация полей входа или выхода API.
//
// Ключ — имя поля. Nil-схема означает, что поля не декларированы:
// валидация field mappings принимает любые имена.
type Schema map[string]FieldDef

// FieldDef — определение одного поля схемы.
type FieldDef struct {
	// Type — тип поля: "string", "number", "boolean", "object", "array".
	Type string `json:"type"`

	// Required — обязательное ли поле (имеет смысл только для входных схем).
	Required bool `json:"required,omitempty"`

	// Default — значение по умолчанию.
	Default any `json:"default,omitempty"`

	// Description — описание поля.
	Description string `json:"description,omitempty"`
}

// Has возвращает true, если поле декларировано в схеме.
// Для nil-схемы всегда true: отсутствие схемы разрешает любые поля.
func (s Schema) Has(field string) bool {
	if s == nil {
		return true
	}
	_, ok := s[field]
	return ok
}

// RequiredFields возвращает имена обязательных полей схемы.
func (s Schema) RequiredFields() []string {
	if s == nil {
		return nil
	}
	var fields []string
	for name, def := range s {
		if def.Required {
			fields = append(fields, name)
		}
	}
	return fields
}

// ApplyDefaults дополняет params значениями по умолчанию
// для недекларированных в params полей.
func (s Schema) ApplyDefaults(params map[string]any) {
	for name, def := range s {
		if def.Default == nil {
			continue
		}
		if _, ok := params[name]; !ok {
			params[name] = def.Default
		}
	}
}
