package lookup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Value is an optional scalar from a lookup record. The service mixes
// strings, numbers, booleans, lists and nulls for the same field, and uses
// "" or "-" for "not captured".
type Value struct {
	Text string
	Set  bool
}

// Present returns a set Value.
func Present(s string) Value {
	return Value{Text: s, Set: true}
}

// UnmarshalJSON normalizes every supported JSON kind to text.
func (v *Value) UnmarshalJSON(data []byte) error {
	*v = Value{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v.set(s)
	case '[':
		var items []Value
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		parts := make([]string, 0, len(items))
		for _, it := range items {
			if it.Set {
				parts = append(parts, it.Text)
			}
		}
		v.set(strings.Join(parts, ", "))
	case '{':
		// Nested objects are not scalar fields.
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		v.set(strconv.FormatBool(b))
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("decode scalar: %w", err)
		}
		v.set(n.String())
	}
	return nil
}

func (v *Value) set(s string) {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return
	}
	v.Text = s
	v.Set = true
}

// Bool interprets v as a flag, returning fallback when v is absent or not
// recognizable.
func (v Value) Bool(fallback bool) bool {
	if !v.Set {
		return fallback
	}
	switch strings.ToLower(v.Text) {
	case "true", "1", "si", "sí", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return fallback
	}
}

// FirstPresent returns the first set value, or an unset Value.
func FirstPresent(vals ...Value) Value {
	for _, v := range vals {
		if v.Set {
			return v
		}
	}
	return Value{}
}

// JobRecord is a vacancy detail record as returned by the lookup service.
// Each field accepts the canonical name plus the aliases the service has
// used for it over time; no field is guaranteed.
type JobRecord struct {
	IDPuesto          Value
	IDVacante         Value
	Title             Value
	Company           Value
	Ubicacion         Value
	Oficinas          Value
	DescripcionPuesto Value
	ObjetivoDelPuesto Value
	Functions         Value
	Responsibilities  Value
	SalaryMin         Value
	SalaryMax         Value
	ExperienceLevel   Value
	EmploymentType    Value
	Disponible        Value
	InterviewDays     Value
	InterviewTimes    Value

	// Error carries the service's {"error": "..."} payload.
	Error string
}

type aliasedField struct {
	dst  *Value
	keys []string
}

func (r *JobRecord) fields() []aliasedField {
	return []aliasedField{
		{&r.IDPuesto, []string{"Id_Puesto"}},
		{&r.IDVacante, []string{"id_vacante", "Id_Vacante"}},
		{&r.Title, []string{"title", "nombre_de_la_vacante", "Nombre_de_la_vacante"}},
		{&r.Company, []string{"company", "empresa", "Empresa"}},
		{&r.Ubicacion, []string{"Ubicacion"}},
		{&r.Oficinas, []string{"Oficinas"}},
		{&r.DescripcionPuesto, []string{"Descripcion_Puesto"}},
		{&r.ObjetivoDelPuesto, []string{"Objetivo_del_puesto"}},
		{&r.Functions, []string{"functions", "funciones", "Funciones"}},
		{&r.Responsibilities, []string{"responsibilities", "responsabilidades", "Responsabilidades"}},
		{&r.SalaryMin, []string{"salary_min", "Sueldo_Neto_Min", "sueldo_neto_min"}},
		{&r.SalaryMax, []string{"salary_max", "Sueldo_Max", "sueldo_max"}},
		{&r.ExperienceLevel, []string{"experience_level", "experiencia", "Experiencia"}},
		{&r.EmploymentType, []string{"employment_type", "Tipo_de_contratacion", "tipo_de_contratacion"}},
		{&r.Disponible, []string{"disponible", "available"}},
		{&r.InterviewDays, []string{"available_days", "dias_para_atender_entrevistas", "Dias_para_atender_Entrevistas"}},
		{&r.InterviewTimes, []string{"available_times", "horarios_disponibles_para_entrevistar", "Horarios_disponibles_para_Entrevistar"}},
	}
}

// UnmarshalJSON decodes a record, taking for each field the first alias that
// carries a value.
func (r *JobRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = JobRecord{}
	if err := decodeAliased(raw, r.fields()); err != nil {
		return err
	}
	if msg, ok := raw["error"]; ok {
		var e Value
		if err := json.Unmarshal(msg, &e); err == nil && e.Set {
			r.Error = e.Text
		}
	}
	return nil
}

// Empty reports whether no field was decoded.
func (r JobRecord) Empty() bool {
	for _, f := range r.fields() {
		if f.dst.Set {
			return false
		}
	}
	return true
}

func decodeAliased(raw map[string]json.RawMessage, fields []aliasedField) error {
	for _, f := range fields {
		for _, key := range f.keys {
			msg, ok := raw[key]
			if !ok {
				continue
			}
			var v Value
			if err := json.Unmarshal(msg, &v); err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
			if v.Set {
				*f.dst = v
				break
			}
		}
	}
	return nil
}

// Summary is one entry of the vacancy listing.
type Summary struct {
	JobID string `json:"job_id"`
	Title string `json:"title"`
}

func (s *Summary) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var id, title Value
	err := decodeAliased(raw, []aliasedField{
		{&id, []string{"job_id", "Id_Vacante", "id_vacante", "Id_Puesto"}},
		{&title, []string{"title", "Nombre_de_la_vacante", "nombre_de_la_vacante"}},
	})
	if err != nil {
		return err
	}
	*s = Summary{JobID: id.Text, Title: title.Text}
	return nil
}
