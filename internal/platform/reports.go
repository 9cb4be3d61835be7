package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/adsightlabs/adsight-core/internal/report"
)

// Observed platform endpoints.
const (
	endpointAdvertiserInfo = "/advertiser/info"
	endpointCampaigns      = "/campaign/get"
	endpointAdReport       = "/report/integrated/get"
	endpointAudience       = "/report/audience/get"
)

// Response payloads, typed at the parsing boundary.
type advertiserData struct {
	List []report.AdvertiserInfo `json:"list"`
}

type campaignData struct {
	List []report.RawCampaign `json:"list"`
}

type adReportData struct {
	List []report.AdRow `json:"list"`
}

type audienceData struct {
	Age       []report.DimensionRow `json:"age"`
	Gender    []report.DimensionRow `json:"gender"`
	Countries []report.DimensionRow `json:"country"`
	Interests []report.DimensionRow `json:"interest"`
}

// The convenience methods below trade strictness for availability: any
// failure (transport, HTTP status, or API logic) is logged and degraded to
// an empty/zero value so one platform hiccup cannot sink a whole
// multi-account collection cycle. Callers that need the typed failure use
// Request directly.

// GetAdvertiserInfo returns the advertiser profile, or nil on any failure.
func (c *Client) GetAdvertiserInfo(ctx context.Context, advertiserID string) *report.AdvertiserInfo {
	params := url.Values{}
	params.Set("advertiser_ids", advertiserID)

	data, err := c.Request(ctx, http.MethodGet, endpointAdvertiserInfo, params)
	if err != nil {
		c.logDegrade("advertiser info", advertiserID, err)
		return nil
	}
	var payload advertiserData
	if err := json.Unmarshal(data, &payload); err != nil {
		c.logDegrade("advertiser info", advertiserID, err)
		return nil
	}
	if len(payload.List) == 0 {
		return nil
	}
	return &payload.List[0]
}

// GetCampaigns lists campaigns with sentinel defaults applied. Any failure
// degrades to an empty list.
func (c *Client) GetCampaigns(ctx context.Context, advertiserID string) []report.Campaign {
	params := url.Values{}
	params.Set("advertiser_id", advertiserID)

	data, err := c.Request(ctx, http.MethodGet, endpointCampaigns, params)
	if err != nil {
		c.logDegrade("campaign list", advertiserID, err)
		return []report.Campaign{}
	}
	var payload campaignData
	if err := json.Unmarshal(data, &payload); err != nil {
		c.logDegrade("campaign list", advertiserID, err)
		return []report.Campaign{}
	}
	return report.MapCampaigns(payload.List)
}

// GetAdReport fetches per-period performance rows for the date range
// (YYYY-MM-DD) and reduces them. Any failure degrades to the zero report.
func (c *Client) GetAdReport(ctx context.Context, advertiserID, startDate, endDate string) report.AdReport {
	params := url.Values{}
	params.Set("advertiser_id", advertiserID)
	params.Set("start_date", startDate)
	params.Set("end_date", endDate)

	data, err := c.Request(ctx, http.MethodGet, endpointAdReport, params)
	if err != nil {
		c.logDegrade("ad report", advertiserID, err)
		return report.AdReport{}
	}
	var payload adReportData
	if err := json.Unmarshal(data, &payload); err != nil {
		c.logDegrade("ad report", advertiserID, err)
		return report.AdReport{}
	}
	return report.ReduceAdRows(payload.List)
}

// GetAudienceReport fetches audience distributions for the date range and
// reduces them. Any failure degrades to an empty report.
func (c *Client) GetAudienceReport(ctx context.Context, advertiserID, startDate, endDate string) report.AudienceReport {
	params := url.Values{}
	params.Set("advertiser_id", advertiserID)
	params.Set("start_date", startDate)
	params.Set("end_date", endDate)

	data, err := c.Request(ctx, http.MethodGet, endpointAudience, params)
	if err != nil {
		c.logDegrade("audience report", advertiserID, err)
		return report.ReduceAudience(nil, nil, nil, nil)
	}
	var payload audienceData
	if err := json.Unmarshal(data, &payload); err != nil {
		c.logDegrade("audience report", advertiserID, err)
		return report.ReduceAudience(nil, nil, nil, nil)
	}
	return report.ReduceAudience(payload.Age, payload.Gender, payload.Countries, payload.Interests)
}

func (c *Client) logDegrade(what, advertiserID string, err error) {
	c.logger.Warn("platform call degraded to default",
		zap.String("call", what),
		zap.String("advertiser_id", advertiserID),
		zap.Error(err),
	)
}
