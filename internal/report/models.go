package report

// Campaign is one campaign as listed by the platform. Missing fields are
// filled with the sentinel defaults downstream consumers rely on.
type Campaign struct {
	CampaignID    string   `json:"campaign_id"`
	CampaignName  string   `json:"campaign_name"`
	ObjectiveType string   `json:"objective_type"`
	Budget        *float64 `json:"budget,omitempty"`
	Status        string   `json:"status"`
}

// AdReport aggregates per-period ad performance rows into fixed totals and
// derived averages. Derived values carry two decimal places.
type AdReport struct {
	TotalSpend        float64 `json:"total_spend"`
	TotalImpressions  int64   `json:"total_impressions"`
	TotalClicks       int64   `json:"total_clicks"`
	TotalConversions  int64   `json:"total_conversions"`
	AvgCTR            float64 `json:"avg_ctr"`
	AvgCPM            float64 `json:"avg_cpm"`
	AvgConversionRate float64 `json:"avg_conversion_rate"`
}

// CountryShare is one entry of the top-countries distribution.
type CountryShare struct {
	Country    string  `json:"country"`
	Percentage float64 `json:"percentage"`
}

// AudienceReport holds audience distributions keyed by raw dimension labels
// (gender labels are lower-cased).
type AudienceReport struct {
	AgeDistribution    map[string]float64 `json:"age_distribution"`
	GenderDistribution map[string]float64 `json:"gender_distribution"`
	TopCountries       []CountryShare     `json:"top_countries"`
	TopInterests       []string           `json:"top_interests"`
}

// AdvertiserInfo is the normalized advertiser lookup result.
type AdvertiserInfo struct {
	AdvertiserID   string `json:"advertiser_id"`
	AdvertiserName string `json:"advertiser_name"`
	Currency       string `json:"currency"`
	Timezone       string `json:"timezone"`
}

// AccountSnapshot bundles everything one collection pass gathers for a
// single account.
type AccountSnapshot struct {
	AccountID  int64           `json:"account_id"`
	Advertiser *AdvertiserInfo `json:"advertiser,omitempty"`
	Campaigns  []Campaign      `json:"campaigns"`
	AdReport   AdReport        `json:"ad_report"`
	Audience   AudienceReport  `json:"audience"`
}
