package tool

import (
	"testing"

	"github.com/invopop/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conclave-ai/conclave/types"
)

func getWeather(location string) string { return "sunny in " + location }

func TestNew(t *testing.T) {
	t.Run("requires a function", func(t *testing.T) {
		_, err := New(42)
		require.Error(t, err)
	})

	t.Run("derives the name from the function", func(t *testing.T) {
		def, err := New(getWeather)
		require.NoError(t, err)
		assert.Equal(t, "getWeather", def.Name)
	})

	t.Run("applies options", func(t *testing.T) {
		def, err := New(getWeather,
			Name("get_weather"),
			Description("Returns the weather for a location"),
			Parameters("location"),
		)
		require.NoError(t, err)
		assert.Equal(t, "get_weather", def.Name)
		assert.Equal(t, "Returns the weather for a location", def.Description)
		assert.Equal(t, map[string]string{"param0": "location"}, def.Parameters)
	})
}

func TestToNameAndSchema(t *testing.T) {
	t.Run("reflects parameters in order", func(t *testing.T) {
		def := Must(func(city string, days int) string { return "" },
			Name("forecast"),
			Parameters("city", "days"),
		)

		name, schema := def.ToNameAndSchema()
		assert.Equal(t, "forecast", name)
		require.NotNil(t, schema.Properties)

		var keys []string
		for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
			keys = append(keys, pair.Key)
		}
		assert.Equal(t, []string{"city", "days"}, keys)
		assert.Equal(t, []string{"city", "days"}, schema.Required)
	})

	t.Run("skips context vars parameters", func(t *testing.T) {
		def := Must(func(cv types.ContextVars, q string) string { return "" },
			Parameters("query"),
		)

		_, schema := def.ToNameAndSchema()
		var keys []string
		for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
			keys = append(keys, pair.Key)
		}
		assert.Equal(t, []string{"query"}, keys)
	})

	t.Run("explicit schema wins", func(t *testing.T) {
		explicit := &jsonschema.Schema{Type: "object"}
		def := Definition{Name: "mark_task_successful", Schema: explicit}

		name, schema := def.ToNameAndSchema()
		assert.Equal(t, "mark_task_successful", name)
		assert.Same(t, explicit, schema)
	})

	t.Run("no-arg function yields empty object schema", func(t *testing.T) {
		def := Must(func() string { return "pong" }, Name("ping"))
		_, schema := def.ToNameAndSchema()
		assert.Equal(t, "object", schema.Type)
		assert.Nil(t, schema.Required)
	})
}
