package report

import (
	"math"
	"sort"
	"strings"
)

// AdRow is one per-period performance row as returned by the integrated ad
// report endpoint. Absent counters decode to zero.
type AdRow struct {
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	Spend       float64 `json:"spend"`
	Conversions int64   `json:"conversions"`
}

// DimensionRow is one audience distribution entry.
type DimensionRow struct {
	Dimension  string  `json:"dimension"`
	Percentage float64 `json:"percentage"`
}

// RawCampaign is one campaign entry as listed by the platform, before
// sentinel defaults are applied.
type RawCampaign struct {
	CampaignID    string   `json:"campaign_id"`
	CampaignName  string   `json:"campaign_name"`
	ObjectiveType string   `json:"objective_type"`
	Budget        *float64 `json:"budget"`
	Status        string   `json:"operation_status"`
}

// ReduceAdRows sums the four counters across rows and derives averaged
// rates, guarding each division by zero. An empty input yields the zero
// report.
func ReduceAdRows(rows []AdRow) AdReport {
	var out AdReport
	for _, row := range rows {
		out.TotalImpressions += row.Impressions
		out.TotalClicks += row.Clicks
		out.TotalSpend += row.Spend
		out.TotalConversions += row.Conversions
	}
	if out.TotalImpressions > 0 {
		out.AvgCTR = round2(float64(out.TotalClicks) / float64(out.TotalImpressions) * 100)
		out.AvgCPM = round2(out.TotalSpend / float64(out.TotalImpressions) * 1000)
	}
	if out.TotalClicks > 0 {
		out.AvgConversionRate = round2(float64(out.TotalConversions) / float64(out.TotalClicks) * 100)
	}
	out.TotalSpend = round2(out.TotalSpend)
	return out
}

// ReduceAudience builds the distribution maps and sorted top lists. Gender
// labels are lower-cased; interest percentages are discarded after sorting.
func ReduceAudience(age, gender, countries, interests []DimensionRow) AudienceReport {
	out := AudienceReport{
		AgeDistribution:    make(map[string]float64, len(age)),
		GenderDistribution: make(map[string]float64, len(gender)),
		TopCountries:       make([]CountryShare, 0, len(countries)),
		TopInterests:       make([]string, 0, len(interests)),
	}
	for _, row := range age {
		out.AgeDistribution[row.Dimension] = row.Percentage
	}
	for _, row := range gender {
		out.GenderDistribution[strings.ToLower(row.Dimension)] = row.Percentage
	}

	for _, row := range countries {
		out.TopCountries = append(out.TopCountries, CountryShare{
			Country:    row.Dimension,
			Percentage: row.Percentage,
		})
	}
	sort.SliceStable(out.TopCountries, func(i, j int) bool {
		return out.TopCountries[i].Percentage > out.TopCountries[j].Percentage
	})

	sorted := append([]DimensionRow(nil), interests...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Percentage > sorted[j].Percentage
	})
	for _, row := range sorted {
		out.TopInterests = append(out.TopInterests, row.Dimension)
	}
	return out
}

// MapCampaigns applies the sentinel defaults downstream consumers depend on.
func MapCampaigns(rows []RawCampaign) []Campaign {
	campaigns := make([]Campaign, 0, len(rows))
	for _, row := range rows {
		campaign := Campaign{
			CampaignID:    row.CampaignID,
			CampaignName:  row.CampaignName,
			ObjectiveType: row.ObjectiveType,
			Budget:        row.Budget,
			Status:        row.Status,
		}
		if campaign.CampaignName == "" {
			campaign.CampaignName = "Unnamed Campaign"
		}
		if campaign.ObjectiveType == "" {
			campaign.ObjectiveType = "UNKNOWN"
		}
		if campaign.Status == "" {
			campaign.Status = "UNKNOWN"
		}
		campaigns = append(campaigns, campaign)
	}
	return campaigns
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
