package platform

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/adsightlabs/adsight-core/internal/report"
)

func TestGetCampaigns_Success(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, endpointCampaigns, r.URL.Path)
		_, _ = w.Write([]byte(`{"code":0,"data":{"list":[
			{"campaign_id":"c1","campaign_name":"Launch","objective_type":"TRAFFIC","budget":99.5,"operation_status":"ENABLE"},
			{"campaign_id":"c2"}
		]}}`))
	}, 0)

	campaigns := client.GetCampaigns(context.Background(), "adv-1")
	require.Len(t, campaigns, 2)
	require.Equal(t, "Launch", campaigns[0].CampaignName)
	require.Equal(t, "Unnamed Campaign", campaigns[1].CampaignName)
	require.Equal(t, "UNKNOWN", campaigns[1].ObjectiveType)
	require.Equal(t, "UNKNOWN", campaigns[1].Status)
	require.Nil(t, campaigns[1].Budget)
}

func TestGetCampaigns_APILogicErrorDegrades(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":40001,"message":"advertiser not authorized"}`))
	}, 0)

	campaigns := client.GetCampaigns(context.Background(), "adv-1")
	require.NotNil(t, campaigns)
	require.Empty(t, campaigns)
}

// An HTTP 401 also degrades to an empty list. That masks "credentials are
// bad" as "no data"; the distinction is only visible to direct Request
// callers. Intentional for now.
func TestGetCampaigns_HTTP401Degrades(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}, 0)

	campaigns := client.GetCampaigns(context.Background(), "adv-1")
	require.NotNil(t, campaigns)
	require.Empty(t, campaigns)
}

func TestGetAdReport_Success(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, endpointAdReport, r.URL.Path)
		require.Equal(t, "2026-08-01", r.URL.Query().Get("start_date"))
		_, _ = w.Write([]byte(`{"code":0,"data":{"list":[
			{"impressions":50000,"clicks":2500,"spend":250.0,"conversions":125},
			{"impressions":50000,"clicks":2500,"spend":250.0,"conversions":125}
		]}}`))
	}, 0)

	out := client.GetAdReport(context.Background(), "adv-1", "2026-08-01", "2026-08-31")
	require.Equal(t, int64(100000), out.TotalImpressions)
	require.Equal(t, 5.0, out.AvgCTR)
}

func TestGetAdReport_FailureDegradesToZero(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}, 0)

	out := client.GetAdReport(context.Background(), "adv-1", "2026-08-01", "2026-08-31")
	require.Equal(t, report.AdReport{}, out)
}

func TestGetAudienceReport_Success(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, endpointAudience, r.URL.Path)
		_, _ = w.Write([]byte(`{"code":0,"data":{
			"gender":[{"dimension":"MALE","percentage":0.6},{"dimension":"FEMALE","percentage":0.4}],
			"age":[{"dimension":"AGE_25_34","percentage":0.5}],
			"country":[{"dimension":"GB","percentage":0.3},{"dimension":"US","percentage":0.7}],
			"interest":[{"dimension":"Gaming","percentage":0.2},{"dimension":"Fashion","percentage":0.8}]
		}}`))
	}, 0)

	out := client.GetAudienceReport(context.Background(), "adv-1", "2026-08-01", "2026-08-31")
	require.Equal(t, 0.6, out.GenderDistribution["male"])
	require.Equal(t, "US", out.TopCountries[0].Country)
	require.Equal(t, []string{"Fashion", "Gaming"}, out.TopInterests)
}

func TestGetAudienceReport_FailureDegradesToEmpty(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":50000,"message":"internal"}`))
	}, 0)

	out := client.GetAudienceReport(context.Background(), "adv-1", "2026-08-01", "2026-08-31")
	require.Empty(t, out.GenderDistribution)
	require.Empty(t, out.TopCountries)
}

func TestGetAdvertiserInfo_Success(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, endpointAdvertiserInfo, r.URL.Path)
		_, _ = w.Write([]byte(`{"code":0,"data":{"list":[
			{"advertiser_id":"adv-1","advertiser_name":"Acme","currency":"USD","timezone":"UTC"}
		]}}`))
	}, 0)

	info := client.GetAdvertiserInfo(context.Background(), "adv-1")
	require.NotNil(t, info)
	require.Equal(t, "Acme", info.AdvertiserName)
}

func TestGetAdvertiserInfo_FailureDegradesToNil(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}, 0)

	require.Nil(t, client.GetAdvertiserInfo(context.Background(), "adv-1"))
}
