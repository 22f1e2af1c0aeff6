package lookup

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueUnmarshal(t *testing.T) {
	tests := []struct {
		in   string
		want Value
	}{
		{`"Cajero"`, Present("Cajero")},
		{`"  padded  "`, Present("padded")},
		{`""`, Value{}},
		{`"-"`, Value{}},
		{`null`, Value{}},
		{`151`, Present("151")},
		{`12500.50`, Present("12500.50")},
		{`true`, Present("true")},
		{`["lunes", "martes", null]`, Present("lunes, martes")},
		{`{"a": 1}`, Value{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var v Value
			require.NoError(t, json.Unmarshal([]byte(tt.in), &v))
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestValueBool(t *testing.T) {
	assert.True(t, Value{}.Bool(true))
	assert.False(t, Present("false").Bool(true))
	assert.True(t, Present("sí").Bool(false))
	assert.True(t, Present("quién sabe").Bool(true))
}

func TestFirstPresent(t *testing.T) {
	assert.Equal(t, Present("b"), FirstPresent(Value{}, Present("b"), Present("c")))
	assert.False(t, FirstPresent(Value{}, Value{}).Set)
}

func TestJobRecordAliases(t *testing.T) {
	var rec JobRecord
	require.NoError(t, json.Unmarshal([]byte(`{
		"Id_Puesto": 88,
		"title": "",
		"nombre_de_la_vacante": "Cajero",
		"Sueldo_Neto_Min": 9000,
		"Horarios_disponibles_para_Entrevistar": "10:00-10:30"
	}`), &rec))

	assert.Equal(t, Present("88"), rec.IDPuesto)
	assert.Equal(t, Present("Cajero"), rec.Title)
	assert.Equal(t, Present("9000"), rec.SalaryMin)
	assert.Equal(t, Present("10:00-10:30"), rec.InterviewTimes)
	assert.False(t, rec.Empty())
	assert.Empty(t, rec.Error)
}

func TestJobRecordErrorPayload(t *testing.T) {
	var rec JobRecord
	require.NoError(t, json.Unmarshal([]byte(`{"error": "No vacancy found with id_vacante: 5"}`), &rec))

	assert.True(t, rec.Empty())
	assert.Equal(t, "No vacancy found with id_vacante: 5", rec.Error)
}
