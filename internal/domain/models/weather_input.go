package models

// WeatherPatch overrides individual weather fields; nil fields keep the
// fetched value.
type WeatherPatch struct {
	Temperature         *float64
	Humidity            *float64
	ApparentTemperature *float64
	SolarRadiation      *float64
	Precipitation       *float64
	WindSpeed           *float64
}

func (p WeatherPatch) Empty() bool {
	return p.Temperature == nil && p.Humidity == nil && p.ApparentTemperature == nil &&
		p.SolarRadiation == nil && p.Precipitation == nil && p.WindSpeed == nil
}

// Complete reports whether every field is set.
func (p WeatherPatch) Complete() bool {
	return p.Temperature != nil && p.Humidity != nil && p.ApparentTemperature != nil &&
		p.SolarRadiation != nil && p.Precipitation != nil && p.WindSpeed != nil
}

// Apply returns w with the patched fields replaced.
func (p WeatherPatch) Apply(w WeatherFields) WeatherFields {
	if p.Temperature != nil {
		w.Temperature = *p.Temperature
		if p.ApparentTemperature == nil {
			w.ApparentTemperature = *p.Temperature
		}
	}
	if p.Humidity != nil {
		w.Humidity = *p.Humidity
	}
	if p.ApparentTemperature != nil {
		w.ApparentTemperature = *p.ApparentTemperature
	}
	if p.SolarRadiation != nil {
		w.SolarRadiation = *p.SolarRadiation
	}
	if p.Precipitation != nil {
		w.Precipitation = *p.Precipitation
	}
	if p.WindSpeed != nil {
		w.WindSpeed = *p.WindSpeed
	}
	if !p.Empty() {
		w.Source = WeatherSourceRequest
	}
	return w
}

type weatherKind int

const (
	weatherAuto weatherKind = iota
	weatherProvided
	weatherPatched
)

// WeatherInput selects how the weather for a single-hour request is
// obtained: fully provided by the caller, fetched, or fetched then patched.
type WeatherInput struct {
	kind   weatherKind
	fields WeatherFields
	patch  WeatherPatch
}

func AutoFetchWeather() WeatherInput { return WeatherInput{kind: weatherAuto} }

func ProvidedWeather(w WeatherFields) WeatherInput {
	w.Source = WeatherSourceRequest
	return WeatherInput{kind: weatherProvided, fields: w}
}

func PatchedWeather(p WeatherPatch) WeatherInput {
	if p.Empty() {
		return AutoFetchWeather()
	}
	return WeatherInput{kind: weatherPatched, patch: p}
}

// Provided returns the caller's fields when no fetch is needed.
func (in WeatherInput) Provided() (WeatherFields, bool) {
	return in.fields, in.kind == weatherProvided
}

// Resolve combines a fetched value with the input. fetched is ignored for
// provided weather.
func (in WeatherInput) Resolve(fetched WeatherFields) WeatherFields {
	switch in.kind {
	case weatherProvided:
		return in.fields
	case weatherPatched:
		return in.patch.Apply(fetched)
	default:
		return fetched
	}
}

// Cacheable reports whether results for this input may be memoized under
// a key that does not include the weather.
func (in WeatherInput) Cacheable() bool { return in.kind == weatherAuto }
