package features

// HeatIndex returns the NOAA heat index in °C for a temperature in °C and
// relative humidity in percent. Below 80°F the Steadman simple form is used
// instead of the Rothfusz regression.
func HeatIndex(tempC, rh float64) float64 {
	t := tempC*9/5 + 32
	simple := 0.5 * (t + 61 + (t-68)*1.2 + rh*0.094)
	if t < 80 {
		return (simple - 32) * 5 / 9
	}
	hi := -42.379 + 2.04901523*t + 10.14333127*rh - 0.22475541*t*rh -
		0.00683783*t*t - 0.05481717*rh*rh + 0.00122874*t*t*rh +
		0.00085282*t*rh*rh - 0.00000199*t*t*rh*rh
	return (hi - 32) * 5 / 9
}
