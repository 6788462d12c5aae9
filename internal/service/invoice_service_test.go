package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"remediation-engine/internal/domain"
	"remediation-engine/internal/repository"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func catalogLine(id, room, itemID, name string, qty, price float64) domain.Measurement {
	m := domain.NewCatalogMeasurement(id, room, &domain.CatalogItem{ID: itemID, Name: name, UnitPrice: price})
	m.Quantity = qty
	return m
}

// Kitchen: 目录行 20 x 5 = 100，设备行 1 x 30 = 30
func scenarioRooms() []domain.Room {
	eq := domain.NewEquipmentMeasurement("m-eq", "Kitchen", 1)
	eq.UnitPrice = 30
	return []domain.Room{{
		ID:    "r1",
		Title: "Kitchen",
		Measurements: []domain.Measurement{
			domain.NewRoomLabel("r1-label", "Kitchen"),
			catalogLine("m-1", "Kitchen", "wtr-ext", "Water Extraction", 20, 5),
			eq,
		},
	}}
}

func TestGroupByRoom_ExcludesLabels(t *testing.T) {
	groups := GroupByRoom(scenarioRooms())
	require.Len(t, groups, 1)
	assert.Equal(t, "Kitchen", groups[0].RoomName)
	require.Len(t, groups[0].Measurements, 2)
	for _, m := range groups[0].Measurements {
		assert.True(t, m.IsBillable())
	}
}

func TestLineAmount_LabelIsZero(t *testing.T) {
	label := domain.NewRoomLabel("l", "Kitchen")
	label.Quantity = 10
	label.UnitPrice = 10
	assert.Zero(t, LineAmount(label, nil))
	assert.Zero(t, LineAmount(label, domain.Overrides{"l": 99}))
}

// 100 + 30 = 130；把 m-1 覆盖为 80 后合计 110
func TestGrandTotal_WithOverride(t *testing.T) {
	groups := GroupByRoom(scenarioRooms())
	assert.Equal(t, 130.0, GrandTotal(groups, nil))
	assert.Equal(t, 110.0, GrandTotal(groups, domain.Overrides{"m-1": 80}))
	assert.Equal(t, 130.0, GrandTotal(groups, domain.Overrides{"unknown": 5}))
}

func twoRoomScenario() []domain.Room {
	return []domain.Room{
		{ID: "r1", Title: "Kitchen", Measurements: []domain.Measurement{
			domain.NewRoomLabel("r1-label", "Kitchen"),
			catalogLine("k-1", "Kitchen", "wtr-ext", "Water Extraction", 2, 15),
		}},
		{ID: "r2", Title: "Garage", Measurements: []domain.Measurement{
			domain.NewRoomLabel("r2-label", "Garage"),
			catalogLine("g-1", "Garage", "demo", "Drywall Removal", 1, 100),
		}},
	}
}

// Kitchen 2 x 15 = 30，Garage 1 x 100 = 100；Garage 覆盖为 80 后合计 110
func TestGrandTotal_TwoRooms(t *testing.T) {
	groups := GroupByRoom(twoRoomScenario())
	require.Len(t, groups, 2)
	assert.Equal(t, 30.0, LineAmount(groups[0].Measurements[0], nil))
	assert.Equal(t, 100.0, LineAmount(groups[1].Measurements[0], nil))
	assert.Equal(t, 130.0, GrandTotal(groups, nil))

	overrides := domain.Overrides{"g-1": 80}
	assert.Equal(t, 110.0, GrandTotal(groups, overrides))
	assert.Equal(t, 1.0, groups[1].Measurements[0].Quantity)
	assert.Equal(t, 100.0, groups[1].Measurements[0].UnitPrice)
}

// 未选择目录项的占位行不计入合计，与提交的发票一致
func TestPreviewTotalMatchesPayload(t *testing.T) {
	rooms := twoRoomScenario()
	blank := domain.NewCatalogMeasurement("p-1", "Garage", nil)
	blank.Quantity = 2
	blank.UnitPrice = 10
	rooms[1].Measurements = append(rooms[1].Measurements, blank)

	for _, overrides := range []domain.Overrides{nil, {"g-1": 80}, {"p-1": 50}} {
		preview := buildPreview(&domain.Job{JobID: "job-1", RemediationData: domain.RemediationData{Rooms: rooms}}, overrides)
		payload := ComposeInvoicePayload(domain.Customer{Ref: "58"}, time.Now(), preview.LineItems)
		assert.Equal(t, preview.Total, payload.TotalAmt, "overrides=%v", overrides)
		assert.Len(t, preview.LineItems, 2)
	}
	assert.Zero(t, LineAmount(blank, domain.Overrides{"p-1": 50}))
}

func TestInvoiceService_PreviewRejectsBadOverrides(t *testing.T) {
	jobs := repository.NewMemoryJobsRepo()
	jobs.PutJob(domain.Job{JobID: "job-1", RemediationData: domain.RemediationData{Rooms: twoRoomScenario()}})
	svc := NewInvoiceService(jobs, NewAccountingClient("http://unused", "", 0, zap.NewNop()), nil, zap.NewNop())

	for _, v := range []float64{-1, domain.MaxOverrideAmount + 1} {
		_, err := svc.Preview(context.Background(), "job-1", domain.Overrides{"g-1": v})
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr, "override %v", v)
		assert.Equal(t, "overrides", verr.Field)
	}

	preview, err := svc.Preview(context.Background(), "job-1", domain.Overrides{"g-1": domain.MaxOverrideAmount})
	require.NoError(t, err)
	assert.Equal(t, float64(domain.MaxOverrideAmount)+30, preview.Total)
}

func TestLineAmount_OverrideTakesPrecedence(t *testing.T) {
	m := catalogLine("m", "Kitchen", "x", "X", 3, 10)
	assert.Equal(t, 30.0, LineAmount(m, nil))
	assert.Equal(t, 50.0, LineAmount(m, domain.Overrides{"m": 50}))
	assert.Equal(t, 0.0, LineAmount(m, domain.Overrides{"m": 0}))
	// 覆盖不修改底层数据
	assert.Equal(t, 3.0, m.Quantity)
	assert.Equal(t, 10.0, m.UnitPrice)
}

func TestBuildLineItems(t *testing.T) {
	rooms := scenarioRooms()
	rooms[0].Measurements = append(rooms[0].Measurements, domain.NewCatalogMeasurement("m-blank", "Kitchen", nil))
	groups := GroupByRoom(rooms)

	items := BuildLineItems(groups, domain.Overrides{"m-1": 80})
	require.Len(t, items, 2, "placeholder without item is skipped")

	first := items[0]
	assert.Equal(t, "m-1", first.MeasurementID)
	assert.Equal(t, "Kitchen - Water Extraction", first.Description)
	assert.Equal(t, 80.0, first.Amount)
	assert.Equal(t, 4.0, first.UnitPrice)
	assert.Equal(t, 20.0, first.Quantity)
	assert.True(t, first.Overridden)

	second := items[1]
	assert.Equal(t, domain.EquipmentItemID, second.ItemID)
	assert.Equal(t, 30.0, second.Amount)
	assert.False(t, second.Overridden)
}

// 合计与房间 / 行的顺序无关（含覆盖金额）
func TestGrandTotal_PermutationInvariant(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	lineGen := gen.Struct(reflectTypeOfLine, map[string]gopter.Gen{
		"Qty":         gen.Float64Range(0, 500),
		"Price":       gen.Float64Range(0, 250),
		"Override":    gen.Float64Range(0, 5000),
		"HasOverride": gen.Bool(),
	})

	properties.Property("grand total ignores ordering", prop.ForAll(
		func(lines []genLine, seed int64) bool {
			groups := linesToGroups(lines)
			overrides := linesToOverrides(lines)
			shuffled := shuffleGroups(groups, seed)
			return GrandTotalCents(groups, overrides) == GrandTotalCents(shuffled, overrides)
		},
		gen.SliceOf(lineGen),
		gen.Int64(),
	))

	properties.TestingRun(t)
}

type genLine struct {
	Qty         float64
	Price       float64
	Override    float64
	HasOverride bool
}

var reflectTypeOfLine = reflect.TypeOf(genLine{})

// linesToGroups 按下标把行分到 3 个房间
func linesToGroups(lines []genLine) []domain.RoomGroup {
	groups := []domain.RoomGroup{{RoomName: "A"}, {RoomName: "B"}, {RoomName: "C"}}
	for i, l := range lines {
		m := catalogLine(fmt.Sprintf("m-%d", i), "", "item", "Item", l.Qty, l.Price)
		g := &groups[i%len(groups)]
		g.Measurements = append(g.Measurements, m)
	}
	return groups
}

func linesToOverrides(lines []genLine) domain.Overrides {
	overrides := domain.Overrides{}
	for i, l := range lines {
		if l.HasOverride {
			overrides[fmt.Sprintf("m-%d", i)] = l.Override
		}
	}
	return overrides
}

func shuffleGroups(groups []domain.RoomGroup, seed int64) []domain.RoomGroup {
	rng := rand.New(rand.NewSource(seed))
	out := make([]domain.RoomGroup, len(groups))
	for i, g := range groups {
		ms := append([]domain.Measurement(nil), g.Measurements...)
		rng.Shuffle(len(ms), func(a, b int) { ms[a], ms[b] = ms[b], ms[a] })
		out[i] = domain.RoomGroup{RoomName: g.RoomName, Measurements: ms}
	}
	rng.Shuffle(len(out), func(a, b int) { out[a], out[b] = out[b], out[a] })
	return out
}

func TestInvoiceService_Preview(t *testing.T) {
	ctx := context.Background()
	jobs := repository.NewMemoryJobsRepo()
	jobs.PutJob(domain.Job{
		JobID:           "job-1",
		Customer:        domain.Customer{Name: "Dana Flores", Ref: "58", Email: "dana@example.com"},
		RemediationData: domain.RemediationData{Rooms: scenarioRooms()},
	})
	svc := NewInvoiceService(jobs, NewAccountingClient("http://unused", "", 0, zap.NewNop()), nil, zap.NewNop())

	preview, err := svc.Preview(ctx, "job-1", domain.Overrides{"m-1": 80})
	require.NoError(t, err)
	assert.Equal(t, 110.0, preview.Total)
	assert.Len(t, preview.LineItems, 2)
	assert.Equal(t, "58", preview.Customer.Ref)

	_, err = svc.Preview(ctx, "job-404", nil)
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

// 凭证缺失时不发起任何网络请求
func TestInvoiceService_SubmitMissingCredentials(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	jobs := repository.NewMemoryJobsRepo()
	jobs.PutJob(domain.Job{JobID: "job-1", Customer: domain.Customer{Ref: "58"}, RemediationData: domain.RemediationData{Rooms: scenarioRooms()}})
	svc := NewInvoiceService(jobs, NewAccountingClient(srv.URL, "", 0, zap.NewNop()), nil, zap.NewNop())

	for _, creds := range []domain.AccountingCredentials{
		{},
		{AccessToken: "token"},
		{RealmID: "realm"},
	} {
		_, err := svc.Submit(context.Background(), SubmitInvoiceRequest{JobID: "job-1", Credentials: creds})
		assert.ErrorIs(t, err, domain.ErrMissingCredentials)
	}
	assert.Zero(t, calls.Load())
}

func TestInvoiceService_SubmitValidation(t *testing.T) {
	jobs := repository.NewMemoryJobsRepo()
	jobs.PutJob(domain.Job{JobID: "empty", Customer: domain.Customer{Ref: "58"}})
	jobs.PutJob(domain.Job{JobID: "no-ref", RemediationData: domain.RemediationData{Rooms: scenarioRooms()}})
	svc := NewInvoiceService(jobs, NewAccountingClient("http://unused", "", 0, zap.NewNop()), nil, zap.NewNop())
	creds := domain.AccountingCredentials{AccessToken: "t", RealmID: "r"}

	_, err := svc.Submit(context.Background(), SubmitInvoiceRequest{JobID: "empty", Credentials: creds})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "line_items", verr.Field)

	_, err = svc.Submit(context.Background(), SubmitInvoiceRequest{JobID: "no-ref", Credentials: creds})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "customer", verr.Field)
}

func TestInvoiceService_SubmitMarksJobInvoiced(t *testing.T) {
	var got InvoicePayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/company/realm-9/invoice", r.URL.Path)
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Invoice":{"Id":"145","DocNumber":"1037","TotalAmt":110},"time":"2026-03-14T09:30:00Z"}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	jobs := repository.NewMemoryJobsRepo()
	jobs.PutJob(domain.Job{
		JobID:           "job-1",
		Customer:        domain.Customer{Name: "Dana Flores", Ref: "58", Email: "dana@example.com"},
		RemediationData: domain.RemediationData{Rooms: scenarioRooms()},
	})
	svc := NewInvoiceService(jobs, NewAccountingClient(srv.URL, "", 0, zap.NewNop()), nil, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC) }

	inv, err := svc.Submit(ctx, SubmitInvoiceRequest{
		JobID:       "job-1",
		Overrides:   domain.Overrides{"m-1": 80},
		Credentials: domain.AccountingCredentials{AccessToken: "token-1", RealmID: "realm-9"},
	})
	require.NoError(t, err)
	assert.Equal(t, "145", inv.ID)
	assert.Equal(t, "1037", inv.DocNumber)

	assert.Equal(t, 110.0, got.TotalAmt)
	assert.Equal(t, "58", got.CustomerRef.Value)
	assert.Equal(t, "2026-03-14", got.TxnDate)
	require.Len(t, got.Line, 2)
	assert.Equal(t, 80.0, got.Line[0].Amount)

	job, err := jobs.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "145", job.InvoiceID)
	require.NotNil(t, job.InvoicedAt)
}
