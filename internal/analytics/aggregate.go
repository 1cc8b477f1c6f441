package analytics

import (
	"math"
	"sort"
	"strconv"
	"time"

	"funnelboard/internal/chatwoot"
)

// ComputeInput bundles everything one aggregation pass needs. Records are
// read-only to the pipeline; Conversations must be in fetch order because the
// recent-appointments list is never re-sorted.
type ComputeInput struct {
	Conversations []chatwoot.Conversation
	Inboxes       []chatwoot.Inbox
	Global        Window
	Trend         Window
	TargetWeek    int
	Location      *time.Location
}

// funnelStages declares the funnel in its fixed display order.
var funnelStages = []struct {
	label   string
	display string
	color   string
}{
	{LabelLeadsEntrantes, "Leads Entrantes", "hsl(224, 62%, 32%)"},
	{LabelA, "Interesado (A)", "hsl(142, 60%, 45%)"},
	{LabelB1, "Calificado B1", "hsl(45, 93%, 58%)"},
	{LabelB2, "Calificado B2", "hsl(142, 60%, 35%)"},
	{LabelCitaAgendada, "Cita Agendada", "hsl(224, 55%, 45%)"},
	{LabelC1, "No Califica (C1)", "hsl(0, 70%, 60%)"},
}

// weekdayNames indexes localized weekday labels by time.Weekday (Sunday = 0).
var weekdayNames = [7]string{"Dom", "Lun", "Mar", "Mié", "Jue", "Vie", "Sáb"}

// captureFields are the tracked data-capture attributes, in report order.
var captureFields = []string{
	AttrNombreCompleto,
	AttrCelular,
	AttrAgencia,
	AttrFechaVisita,
	AttrHoraVisita,
}

const maxRecentAppointments = 5

// Compute runs one full aggregation pass and returns a fresh snapshot.
// Malformed attributes degrade to safe defaults; a zero-record window yields
// zeroed metrics, never a fault.
func Compute(in ComputeInput) *MetricsSnapshot {
	loc := in.Location
	if loc == nil {
		loc = time.Local
	}
	if in.TargetWeek < 1 || in.TargetWeek > 5 {
		in.TargetWeek = 1
	}

	// Ganancia total spans every fetched record regardless of window.
	var gananciaTotal float64
	for i := range in.Conversations {
		gananciaTotal += montoOf(&in.Conversations[i])
	}

	// Global subset: records whose last activity falls inside the window.
	var global []*chatwoot.Conversation
	for i := range in.Conversations {
		conv := &in.Conversations[i]
		if in.Global.Contains(time.Unix(conv.Timestamp, 0).In(loc)) {
			global = append(global, conv)
		}
	}

	totalLeads := len(global)

	var gananciaMensual float64
	labelCounts := make(map[string]int, len(funnelStages))
	interacted := 0
	for _, conv := range global {
		gananciaMensual += montoOf(conv)
		for _, stage := range funnelStages {
			if conv.HasLabel(stage.label) {
				labelCounts[stage.label]++
			}
		}
		if conv.Status != "new" {
			interacted++
		}
	}

	citasAgendadas := labelCounts[LabelCitaAgendada]
	noCalifican := labelCounts[LabelC1]

	snapshot := &MetricsSnapshot{
		KPIs: KPIs{
			TotalLeads:       totalLeads,
			LeadsInteresados: labelCounts[LabelA],
			CitasAgendadas:   citasAgendadas,
			NoCalifican:      noCalifican,
			TasaAgendamiento: pct(citasAgendadas, totalLeads),
			TasaDescarte:     pct(noCalifican, totalLeads),
			TasaRespuesta:    pct(interacted, totalLeads),
			GananciaMensual:  gananciaMensual,
			GananciaTotal:    gananciaTotal,
		},
		FunnelData:         buildFunnel(labelCounts, totalLeads),
		RecentAppointments: buildAppointments(global),
		ChannelData:        buildChannels(global, in.Inboxes, totalLeads),
		DisqualificationReasons: []DisqualificationReason{
			{Reason: "Descartados (C1)", Count: noCalifican, Percentage: pct(noCalifican, noCalifican)},
		},
		DataCapture:  buildDataCapture(global),
		ResponseTime: 0,
		ComputedAt:   time.Now().In(loc),
	}

	snapshot.WeeklyTrend = buildWeeklyTrend(in.Conversations, in.Trend, in.TargetWeek, loc)
	snapshot.MonthlyTrend = buildMonthlyTrend(in.Conversations, in.Trend, loc)

	return snapshot
}

// pct rounds numerator/denominator to a whole percentage, half up; a zero
// denominator yields 0.
func pct(numerator, denominator int) int {
	if denominator == 0 {
		return 0
	}
	return int(math.Round(float64(numerator) / float64(denominator) * 100))
}

// montoOf parses the monetary attribute with contact-over-conversation
// precedence.
func montoOf(conv *chatwoot.Conversation) float64 {
	raw := MergedRaw(conv.Meta.Sender.CustomAttributes, conv.CustomAttributes, AttrMontoOperacion)
	return ParseMonto(raw)
}

func buildFunnel(labelCounts map[string]int, totalLeads int) []FunnelStage {
	stages := make([]FunnelStage, 0, len(funnelStages))
	for _, stage := range funnelStages {
		count := labelCounts[stage.label]
		stages = append(stages, FunnelStage{
			Label:      stage.display,
			Value:      count,
			Percentage: pct(count, totalLeads),
			Color:      stage.color,
		})
	}
	return stages
}

// buildAppointments projects the first five cita_agendada records, in fetch
// order. Each field resolves contact attributes first, then conversation
// attributes, then the sender profile (name and phone only), then a literal
// placeholder.
func buildAppointments(global []*chatwoot.Conversation) []Appointment {
	appointments := make([]Appointment, 0, maxRecentAppointments)
	for _, conv := range global {
		if !conv.HasLabel(LabelCitaAgendada) {
			continue
		}

		contactAttrs := conv.Meta.Sender.CustomAttributes
		convAttrs := conv.CustomAttributes

		nombre, ok := MergedAttr(contactAttrs, convAttrs, AttrNombreCompleto)
		if !ok {
			nombre = conv.Meta.Sender.Name
		}
		if nombre == "" {
			nombre = "Sin Nombre"
		}

		celular, ok := MergedAttr(contactAttrs, convAttrs, AttrCelular)
		if !ok {
			celular = conv.Meta.Sender.PhoneNumber
		}
		if celular == "" {
			celular = "Sin Celular"
		}

		agencia, ok := MergedAttr(contactAttrs, convAttrs, AttrAgencia)
		if !ok {
			agencia = "Sin Agencia"
		}
		fecha, ok := MergedAttr(contactAttrs, convAttrs, AttrFechaVisita)
		if !ok {
			fecha = "Pendiente"
		}
		hora, _ := MergedAttr(contactAttrs, convAttrs, AttrHoraVisita)

		appointments = append(appointments, Appointment{
			ID:      conv.ID,
			Nombre:  nombre,
			Celular: celular,
			Agencia: agencia,
			Fecha:   fecha,
			Hora:    hora,
			Status:  "Confirmada",
		})

		if len(appointments) == maxRecentAppointments {
			break
		}
	}
	return appointments
}

// buildChannels groups the global subset by inbox channel, in first-appearance
// order. Known channel types map to display names, other inboxes fall back to
// their own name, and records with an unknown inbox land in "Otros".
func buildChannels(global []*chatwoot.Conversation, inboxes []chatwoot.Inbox, totalLeads int) []ChannelStat {
	inboxByID := make(map[int]chatwoot.Inbox, len(inboxes))
	for _, inbox := range inboxes {
		inboxByID[inbox.ID] = inbox
	}

	counts := make(map[string]int)
	var order []string
	for _, conv := range global {
		name := "Otros"
		if inbox, ok := inboxByID[conv.InboxID]; ok {
			switch inbox.ChannelType {
			case "Channel::Whatsapp":
				name = "WhatsApp"
			case "Channel::FacebookPage":
				name = "Facebook"
			case "Channel::Instagram":
				name = "Instagram"
			default:
				name = inbox.Name
			}
		}
		if _, seen := counts[name]; !seen {
			order = append(order, name)
		}
		counts[name]++
	}

	channels := make([]ChannelStat, 0, len(order))
	for _, name := range order {
		icon, color := channelAppearance(name)
		channels = append(channels, ChannelStat{
			Name:       name,
			Count:      counts[name],
			Percentage: pct(counts[name], totalLeads),
			Icon:       icon,
			Color:      color,
		})
	}

	// Non-empty subset but nothing grouped: surface one catch-all entry.
	if len(channels) == 0 && totalLeads > 0 {
		channels = append(channels, ChannelStat{
			Name:       "Desconocido",
			Count:      totalLeads,
			Percentage: 100,
			Icon:       "HelpCircle",
			Color:      "bg-gray-400",
		})
	}
	return channels
}

func channelAppearance(name string) (icon, color string) {
	switch name {
	case "WhatsApp":
		return "MessageCircle", "bg-green-500"
	case "Facebook":
		return "Facebook", "bg-blue-600"
	case "Instagram":
		return "Instagram", "bg-pink-600"
	default:
		return "MessageCircle", "bg-gray-500"
	}
}

// buildWeeklyTrend counts leads and citas per weekday among trend-window
// records whose week-of-month equals the target week. Weekday labels carry
// the calendar date when that weekday occurs inside the target week.
func buildWeeklyTrend(all []chatwoot.Conversation, trend Window, targetWeek int, loc *time.Location) []WeekdayPoint {
	type bucket struct{ leads, citas int }
	var buckets [7]bucket

	for i := range all {
		conv := &all[i]
		t := time.Unix(conv.Timestamp, 0).In(loc)
		if !trend.Contains(t) || WeekNumber(t) != targetWeek {
			continue
		}
		day := int(t.Weekday())
		buckets[day].leads++
		if conv.HasLabel(LabelCitaAgendada) {
			buckets[day].citas++
		}
	}

	// Map each weekday of the target week to its date of month.
	var dayDates [7]int
	for d := trend.Start; !d.After(trend.End); d = d.AddDate(0, 0, 1) {
		if WeekNumber(d) == targetWeek {
			dayDates[int(d.Weekday())] = d.Day()
		}
	}

	points := make([]WeekdayPoint, 0, len(weekdayNames))
	for day, name := range weekdayNames {
		label := name
		if dayDates[day] > 0 {
			label = name + " " + strconv.Itoa(dayDates[day])
		}
		points = append(points, WeekdayPoint{
			Week:  label,
			Leads: buckets[day].leads,
			Citas: buckets[day].citas,
		})
	}
	return points
}

// buildMonthlyTrend fills the five fixed week buckets of the trend window.
// SQLs are leads carrying any mid-funnel qualification label.
func buildMonthlyTrend(all []chatwoot.Conversation, trend Window, loc *time.Location) []WeekPoint {
	type bucket struct{ leads, sqls, citas int }
	var buckets [5]bucket

	for i := range all {
		conv := &all[i]
		t := time.Unix(conv.Timestamp, 0).In(loc)
		if !trend.Contains(t) {
			continue
		}
		week := WeekNumber(t)
		if week < 1 || week > 5 {
			continue
		}
		b := &buckets[week-1]
		b.leads++
		if conv.HasAnyLabel(LabelA, LabelB1, LabelB2) {
			b.sqls++
		}
		if conv.HasLabel(LabelCitaAgendada) {
			b.citas++
		}
	}

	points := make([]WeekPoint, 0, len(buckets))
	for i, b := range buckets {
		points = append(points, WeekPoint{
			Date:  "Sem " + strconv.Itoa(i+1),
			Leads: b.leads,
			SQLs:  b.sqls,
			Citas: b.citas,
		})
	}
	return points
}

// buildDataCapture measures attribute completeness among qualified leads:
// records carrying any mid-funnel or appointment label. A record with none of
// the five fields present is excluded rather than counted as incomplete.
func buildDataCapture(global []*chatwoot.Conversation) DataCapture {
	var target []*chatwoot.Conversation
	for _, conv := range global {
		if conv.HasAnyLabel(LabelA, LabelB1, LabelB2, LabelCitaAgendada) {
			target = append(target, conv)
		}
	}
	totalTarget := len(target)

	fieldCounts := make(map[string]int, len(captureFields))
	complete := 0
	incomplete := 0
	for _, conv := range target {
		present := 0
		for _, field := range captureFields {
			if _, ok := MergedAttr(conv.Meta.Sender.CustomAttributes, conv.CustomAttributes, field); ok {
				fieldCounts[field]++
				present++
			}
		}
		switch {
		case present == len(captureFields):
			complete++
		case present > 0:
			incomplete++
		}
	}

	rates := make([]FieldRate, 0, len(captureFields))
	for _, field := range captureFields {
		rates = append(rates, FieldRate{
			Field: field,
			Rate:  pct(fieldCounts[field], totalTarget),
		})
	}
	sort.SliceStable(rates, func(i, j int) bool { return rates[i].Rate > rates[j].Rate })

	return DataCapture{
		CompletionRate: pct(complete, totalTarget),
		FieldRates:     rates,
		Incomplete:     incomplete,
		FunnelDropoff:  0,
	}
}
