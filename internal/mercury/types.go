package mercury

// UsageResponse is the explicit schema for the usage endpoint payload.
// Missing or malformed fields decode to zero values; resolving those to
// presentation defaults is the metric derivation layer's job.
type UsageResponse struct {
	Usage []UsageSeries `json:"usage"`
}

// UsageSeries is one reported series of hourly entries
type UsageSeries struct {
	Data []HourlyEntry `json:"data"`
}

// HourlyEntry is one hour of reported usage. Date stays a string on the
// wire; the provider's timestamp formats vary across endpoints and the
// calendar date prefix is all downstream consumers need.
type HourlyEntry struct {
	Date        string  `json:"date"`
	Consumption float64 `json:"consumption"`
	Cost        float64 `json:"cost"`
}

// TokenResponse is the token endpoint's reply to a refresh_token grant
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}
