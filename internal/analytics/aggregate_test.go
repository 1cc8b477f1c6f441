package analytics

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"funnelboard/internal/chatwoot"
)

func makeConv(id int, ts time.Time, status string, labels ...string) chatwoot.Conversation {
	return chatwoot.Conversation{
		ID:        id,
		Status:    status,
		InboxID:   1,
		Labels:    labels,
		Timestamp: ts.Unix(),
	}
}

func novemberInput(convs []chatwoot.Conversation, inboxes []chatwoot.Inbox, week int) ComputeInput {
	loc := time.UTC
	sel := &MonthSelection{Year: 2025, Month: time.November}
	global, trend := ResolveWindows(sel, time.Date(2025, time.November, 30, 0, 0, 0, 0, loc), loc)
	return ComputeInput{
		Conversations: convs,
		Inboxes:       inboxes,
		Global:        global,
		Trend:         trend,
		TargetWeek:    week,
		Location:      loc,
	}
}

func TestCompute_EmptyInput(t *testing.T) {
	snap := Compute(novemberInput(nil, nil, 1))

	assert.Equal(t, 0, snap.KPIs.TotalLeads)
	assert.Equal(t, 0, snap.KPIs.TasaAgendamiento)
	assert.Equal(t, 0, snap.KPIs.TasaDescarte)
	assert.Equal(t, 0, snap.KPIs.TasaRespuesta)
	assert.Zero(t, snap.KPIs.GananciaTotal)

	require.Len(t, snap.FunnelData, 6)
	for _, stage := range snap.FunnelData {
		assert.Equal(t, 0, stage.Value)
		assert.Equal(t, 0, stage.Percentage)
	}

	assert.Empty(t, snap.RecentAppointments)
	assert.Empty(t, snap.ChannelData, "no synthetic channel entry when there are no leads")
	assert.Len(t, snap.WeeklyTrend, 7)
	assert.Len(t, snap.MonthlyTrend, 5)
	assert.Equal(t, 0, snap.DataCapture.CompletionRate)
}

func TestCompute_NovemberScenario(t *testing.T) {
	day := time.Date(2025, time.November, 10, 12, 0, 0, 0, time.UTC)

	var convs []chatwoot.Conversation
	// 10 scheduled appointments; the last 3 are missing the phone field.
	for i := 1; i <= 10; i++ {
		c := makeConv(i, day, "open", LabelCitaAgendada)
		attrs := map[string]interface{}{
			AttrNombreCompleto: "Cliente",
			AttrAgencia:        "Centro",
			AttrFechaVisita:    "2025-11-20",
			AttrHoraVisita:     "10:00",
		}
		if i <= 7 {
			attrs[AttrCelular] = "999888777"
		}
		c.CustomAttributes = attrs
		convs = append(convs, c)
	}
	// 20 plain incoming leads.
	for i := 11; i <= 30; i++ {
		convs = append(convs, makeConv(i, day, "open", LabelLeadsEntrantes))
	}

	snap := Compute(novemberInput(convs, nil, 1))

	assert.Equal(t, 30, snap.KPIs.TotalLeads)
	assert.Equal(t, 10, snap.KPIs.CitasAgendadas)
	assert.Equal(t, 33, snap.KPIs.TasaAgendamiento, "round(10/30*100)")

	// Data capture targets the 10 labeled records; 7 carry all five fields.
	assert.Equal(t, 70, snap.DataCapture.CompletionRate)
	assert.Equal(t, 3, snap.DataCapture.Incomplete)
	rateOf := func(field string) int {
		for _, fr := range snap.DataCapture.FieldRates {
			if fr.Field == field {
				return fr.Rate
			}
		}
		t.Fatalf("field %s missing from field rates", field)
		return 0
	}
	assert.Equal(t, 70, rateOf(AttrCelular))
	assert.Equal(t, 100, rateOf(AttrNombreCompleto))
	assert.Equal(t, 100, rateOf(AttrFechaVisita))

	// Rates are sorted descending, so celular comes last.
	require.Len(t, snap.DataCapture.FieldRates, 5)
	assert.Equal(t, AttrCelular, snap.DataCapture.FieldRates[4].Field)
}

func TestCompute_FunnelOrderAndPercentages(t *testing.T) {
	day := time.Date(2025, time.November, 5, 9, 0, 0, 0, time.UTC)
	convs := []chatwoot.Conversation{
		makeConv(1, day, "open", LabelLeadsEntrantes, LabelA),
		makeConv(2, day, "open", LabelLeadsEntrantes, LabelA, LabelB1),
		makeConv(3, day, "open", LabelB2, LabelCitaAgendada),
		makeConv(4, day, "open", LabelC1),
	}

	snap := Compute(novemberInput(convs, nil, 1))

	require.Len(t, snap.FunnelData, 6)
	labels := make([]string, 0, 6)
	for _, stage := range snap.FunnelData {
		labels = append(labels, stage.Label)
	}
	assert.Equal(t, []string{
		"Leads Entrantes", "Interesado (A)", "Calificado B1",
		"Calificado B2", "Cita Agendada", "No Califica (C1)",
	}, labels)

	// Every stage percentage is computed against totalLeads (4).
	assert.Equal(t, 2, snap.FunnelData[0].Value)
	assert.Equal(t, 50, snap.FunnelData[0].Percentage)
	assert.Equal(t, 2, snap.FunnelData[1].Value)
	assert.Equal(t, 1, snap.FunnelData[2].Value)
	assert.Equal(t, 25, snap.FunnelData[2].Percentage)
	assert.Equal(t, 1, snap.FunnelData[4].Value)
	assert.Equal(t, 1, snap.FunnelData[5].Value)

	assert.Equal(t, 2, snap.KPIs.LeadsInteresados)
	assert.Equal(t, 1, snap.KPIs.NoCalifican)
	assert.Equal(t, 25, snap.KPIs.TasaDescarte)
}

func TestCompute_ResponseRate(t *testing.T) {
	day := time.Date(2025, time.November, 5, 9, 0, 0, 0, time.UTC)
	convs := []chatwoot.Conversation{
		makeConv(1, day, "new"),
		makeConv(2, day, "open"),
		makeConv(3, day, "resolved"),
		makeConv(4, day, "pending"),
	}

	snap := Compute(novemberInput(convs, nil, 1))
	assert.Equal(t, 75, snap.KPIs.TasaRespuesta)
}

func TestCompute_GananciaTotalSpansAllRecords(t *testing.T) {
	inWindow := time.Date(2025, time.November, 5, 9, 0, 0, 0, time.UTC)
	outOfWindow := time.Date(2025, time.July, 5, 9, 0, 0, 0, time.UTC)

	withContact := makeConv(1, inWindow, "open")
	withContact.Meta.Sender.CustomAttributes = map[string]interface{}{AttrMontoOperacion: "$1,000.50"}
	withContact.CustomAttributes = map[string]interface{}{AttrMontoOperacion: "999"}

	convOnly := makeConv(2, inWindow, "open")
	convOnly.CustomAttributes = map[string]interface{}{AttrMontoOperacion: "2,000"}

	older := makeConv(3, outOfWindow, "open")
	older.CustomAttributes = map[string]interface{}{AttrMontoOperacion: "500"}

	snap := Compute(novemberInput([]chatwoot.Conversation{withContact, convOnly, older}, nil, 1))

	assert.InDelta(t, 3500.50, snap.KPIs.GananciaTotal, 1e-9, "total spans records outside the window")
	assert.InDelta(t, 3000.50, snap.KPIs.GananciaMensual, 1e-9, "contact attribute wins over conversation attribute")
	assert.Equal(t, 2, snap.KPIs.TotalLeads, "older record stays out of the global subset")
}

func TestCompute_RecentAppointments(t *testing.T) {
	day := time.Date(2025, time.November, 5, 9, 0, 0, 0, time.UTC)

	var convs []chatwoot.Conversation
	for i := 1; i <= 8; i++ {
		convs = append(convs, makeConv(i, day, "open", LabelCitaAgendada))
	}
	// Record 1: contact attributes beat conversation attributes.
	convs[0].Meta.Sender.CustomAttributes = map[string]interface{}{AttrNombreCompleto: "Ana"}
	convs[0].CustomAttributes = map[string]interface{}{AttrNombreCompleto: "ignorada"}
	// Record 2: sender profile fallback for name and phone.
	convs[1].Meta.Sender.Name = "Luis"
	convs[1].Meta.Sender.PhoneNumber = "51999000111"

	snap := Compute(novemberInput(convs, nil, 1))

	require.Len(t, snap.RecentAppointments, 5, "capped at five entries")
	for i, appt := range snap.RecentAppointments {
		assert.Equal(t, i+1, appt.ID, "fetch order preserved, never re-sorted")
		assert.Equal(t, "Confirmada", appt.Status)
	}

	assert.Equal(t, "Ana", snap.RecentAppointments[0].Nombre)
	assert.Equal(t, "Luis", snap.RecentAppointments[1].Nombre)
	assert.Equal(t, "51999000111", snap.RecentAppointments[1].Celular)

	// Record 3 has nothing anywhere: literal placeholders.
	third := snap.RecentAppointments[2]
	assert.Equal(t, "Sin Nombre", third.Nombre)
	assert.Equal(t, "Sin Celular", third.Celular)
	assert.Equal(t, "Sin Agencia", third.Agencia)
	assert.Equal(t, "Pendiente", third.Fecha)
	assert.Equal(t, "", third.Hora)
}

func TestCompute_ChannelBreakdown(t *testing.T) {
	day := time.Date(2025, time.November, 5, 9, 0, 0, 0, time.UTC)
	inboxes := []chatwoot.Inbox{
		{ID: 1, Name: "Ventas WA", ChannelType: "Channel::Whatsapp"},
		{ID: 2, Name: "Página FB", ChannelType: "Channel::FacebookPage"},
		{ID: 3, Name: "Sitio Web", ChannelType: "Channel::WebWidget"},
	}

	mk := func(id, inboxID int) chatwoot.Conversation {
		c := makeConv(id, day, "open")
		c.InboxID = inboxID
		return c
	}
	convs := []chatwoot.Conversation{
		mk(1, 1), mk(2, 1), mk(3, 2), mk(4, 3), mk(5, 99),
	}

	snap := Compute(novemberInput(convs, inboxes, 1))

	require.Len(t, snap.ChannelData, 4)
	assert.Equal(t, "WhatsApp", snap.ChannelData[0].Name)
	assert.Equal(t, 2, snap.ChannelData[0].Count)
	assert.Equal(t, 40, snap.ChannelData[0].Percentage)
	assert.Equal(t, "Facebook", snap.ChannelData[1].Name)
	assert.Equal(t, "Sitio Web", snap.ChannelData[2].Name, "unmapped channel types fall back to the inbox name")
	assert.Equal(t, "Otros", snap.ChannelData[3].Name, "unknown inbox ids land in Otros")
}

func TestCompute_WeeklyTrend(t *testing.T) {
	// November 2025 starts on a Saturday, so week 2 spans the 2nd through the 8th.
	convs := []chatwoot.Conversation{
		makeConv(1, time.Date(2025, time.November, 3, 10, 0, 0, 0, time.UTC), "open", LabelCitaAgendada),
		makeConv(2, time.Date(2025, time.November, 5, 10, 0, 0, 0, time.UTC), "open"),
		makeConv(3, time.Date(2025, time.November, 5, 16, 0, 0, 0, time.UTC), "open"),
		makeConv(4, time.Date(2025, time.November, 1, 10, 0, 0, 0, time.UTC), "open"),  // week 1
		makeConv(5, time.Date(2025, time.November, 20, 10, 0, 0, 0, time.UTC), "open"), // week 4
	}

	snap := Compute(novemberInput(convs, nil, 2))

	require.Len(t, snap.WeeklyTrend, 7)
	assert.Equal(t, "Dom 2", snap.WeeklyTrend[0].Week)
	assert.Equal(t, "Sáb 8", snap.WeeklyTrend[6].Week)

	monday := snap.WeeklyTrend[1]
	assert.Equal(t, "Lun 3", monday.Week)
	assert.Equal(t, 1, monday.Leads)
	assert.Equal(t, 1, monday.Citas)

	wednesday := snap.WeeklyTrend[3]
	assert.Equal(t, "Mié 5", wednesday.Week)
	assert.Equal(t, 2, wednesday.Leads)
	assert.Equal(t, 0, wednesday.Citas)

	// Records outside the target week do not leak into any bucket.
	total := 0
	for _, p := range snap.WeeklyTrend {
		total += p.Leads
	}
	assert.Equal(t, 3, total)
}

func TestCompute_WeeklyTrend_PartialWeekLabels(t *testing.T) {
	// Week 1 of November 2025 is just Saturday the 1st: every other weekday
	// keeps its bare name.
	snap := Compute(novemberInput(nil, nil, 1))

	require.Len(t, snap.WeeklyTrend, 7)
	assert.Equal(t, "Dom", snap.WeeklyTrend[0].Week)
	assert.Equal(t, "Vie", snap.WeeklyTrend[5].Week)
	assert.Equal(t, "Sáb 1", snap.WeeklyTrend[6].Week)
}

func TestCompute_MonthlyTrend(t *testing.T) {
	convs := []chatwoot.Conversation{
		makeConv(1, time.Date(2025, time.November, 1, 10, 0, 0, 0, time.UTC), "open", LabelA),
		makeConv(2, time.Date(2025, time.November, 4, 10, 0, 0, 0, time.UTC), "open", LabelB1, LabelCitaAgendada),
		makeConv(3, time.Date(2025, time.November, 12, 10, 0, 0, 0, time.UTC), "open", LabelB2),
		makeConv(4, time.Date(2025, time.November, 12, 11, 0, 0, 0, time.UTC), "open", LabelC1),
		// November 30 computes as week 6 and is dropped from the 5 buckets.
		makeConv(5, time.Date(2025, time.November, 30, 10, 0, 0, 0, time.UTC), "open"),
	}

	snap := Compute(novemberInput(convs, nil, 1))

	require.Len(t, snap.MonthlyTrend, 5)
	assert.Equal(t, "Sem 1", snap.MonthlyTrend[0].Date)
	assert.Equal(t, 1, snap.MonthlyTrend[0].Leads)
	assert.Equal(t, 1, snap.MonthlyTrend[0].SQLs)

	week2 := snap.MonthlyTrend[1]
	assert.Equal(t, 1, week2.Leads)
	assert.Equal(t, 1, week2.SQLs, "b1 counts as SQL")
	assert.Equal(t, 1, week2.Citas)

	week3 := snap.MonthlyTrend[2]
	assert.Equal(t, 2, week3.Leads)
	assert.Equal(t, 1, week3.SQLs, "c1 is not an SQL")

	totalLeads := 0
	for _, p := range snap.MonthlyTrend {
		totalLeads += p.Leads
	}
	assert.Equal(t, 4, totalLeads, "week-6 record is dropped")
}

func TestCompute_DisqualificationReasons(t *testing.T) {
	day := time.Date(2025, time.November, 5, 9, 0, 0, 0, time.UTC)
	convs := []chatwoot.Conversation{
		makeConv(1, day, "open", LabelC1),
		makeConv(2, day, "open", LabelC1),
		makeConv(3, day, "open", LabelLeadsEntrantes),
	}

	snap := Compute(novemberInput(convs, nil, 1))

	require.Len(t, snap.DisqualificationReasons, 1)
	reason := snap.DisqualificationReasons[0]
	assert.Equal(t, "Descartados (C1)", reason.Reason)
	assert.Equal(t, 2, reason.Count)
	assert.Equal(t, 100, reason.Percentage)

	empty := Compute(novemberInput(nil, nil, 1))
	require.Len(t, empty.DisqualificationReasons, 1)
	assert.Equal(t, 0, empty.DisqualificationReasons[0].Percentage)
}

func TestCompute_PercentageBounds(t *testing.T) {
	day := time.Date(2025, time.November, 5, 9, 0, 0, 0, time.UTC)
	var convs []chatwoot.Conversation
	for i := 1; i <= 13; i++ {
		labels := []string{LabelLeadsEntrantes}
		if i%2 == 0 {
			labels = append(labels, LabelCitaAgendada)
		}
		if i%3 == 0 {
			labels = append(labels, LabelC1)
		}
		convs = append(convs, makeConv(i, day, "open", labels...))
	}

	snap := Compute(novemberInput(convs, nil, 1))

	check := func(p int, what string) {
		assert.GreaterOrEqual(t, p, 0, what)
		assert.LessOrEqual(t, p, 100, what)
	}
	check(snap.KPIs.TasaAgendamiento, "tasaAgendamiento")
	check(snap.KPIs.TasaDescarte, "tasaDescarte")
	check(snap.KPIs.TasaRespuesta, "tasaRespuesta")
	for _, stage := range snap.FunnelData {
		check(stage.Percentage, stage.Label)
	}
	for _, ch := range snap.ChannelData {
		check(ch.Percentage, ch.Name)
	}
}

func TestCompute_FixedZeroOutputs(t *testing.T) {
	day := time.Date(2025, time.November, 5, 9, 0, 0, 0, time.UTC)
	snap := Compute(novemberInput([]chatwoot.Conversation{makeConv(1, day, "open")}, nil, 1))

	assert.Equal(t, 0, snap.ResponseTime)
	assert.Equal(t, 0, snap.DataCapture.FunnelDropoff)
}

func TestSnapshot_JSONRoundTrip(t *testing.T) {
	day := time.Date(2025, time.November, 5, 9, 0, 0, 0, time.UTC)
	convs := []chatwoot.Conversation{
		makeConv(1, day, "open", LabelLeadsEntrantes, LabelA),
		makeConv(2, day, "new", LabelCitaAgendada),
	}
	convs[1].CustomAttributes = map[string]interface{}{AttrMontoOperacion: "$1,234.56"}

	snap := Compute(novemberInput(convs, nil, 1))

	first, err := json.Marshal(snap)
	require.NoError(t, err)

	var decoded MetricsSnapshot
	require.NoError(t, json.Unmarshal(first, &decoded))

	second, err := json.Marshal(&decoded)
	require.NoError(t, err)
	assert.JSONEq(t, string(first), string(second))
}
