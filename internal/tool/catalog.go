package tool

import "activityplanner/internal/domain"

// Descriptor is the published shape of one planner tool.
type Descriptor struct {
	Kind        domain.ToolKind
	Name        string
	Description string
	InputSchema map[string]any
	Required    []string
}

// Describe returns the descriptor for kind.
func Describe(kind domain.ToolKind) Descriptor {
	d := Descriptor{Kind: kind, Name: kind.String()}
	switch kind {
	case domain.ToolGetWeatherData:
		d.Description = "Get weather data for a city using browser automation"
		d.InputSchema, d.Required = ObjectSchema(
			Required("city", "City to fetch the forecast for, e.g. 'Richmond VA'"),
		)
	case domain.ToolGenerateAnalysisCode:
		d.Description = "Generate Python code for weather classification"
		d.InputSchema, d.Required = ObjectSchema(
			Required("weather_data", "Forecast JSON returned by get_weather_data"),
		)
	case domain.ToolExecuteCode:
		d.Description = "Execute Python code using the code interpreter sandbox"
		d.InputSchema, d.Required = ObjectSchema(
			Required("python_code", "Python source to run"),
		)
	case domain.ToolStoreUserPreferences:
		d.Description = "Store user activity preferences in memory"
		d.InputSchema, d.Required = ObjectSchema(
			Required("preferences", "Free-form description of the user's activity preferences"),
		)
	case domain.ToolGetActivityPreferences:
		d.Description = "Get user activity preferences from memory"
		d.InputSchema, d.Required = ObjectSchema()
	case domain.ToolStoreActivityPlan:
		d.Description = "Store the activity plan in memory"
		d.InputSchema, d.Required = ObjectSchema(
			Required("city", "City the plan is for"),
			Required("plan", "The recommended activity plan"),
		)
	}
	return d
}

// Catalogue returns every tool descriptor in stable order.
func Catalogue() []Descriptor {
	out := make([]Descriptor, 0, len(domain.AllTools))
	for _, k := range domain.AllTools {
		out = append(out, Describe(k))
	}
	return out
}
