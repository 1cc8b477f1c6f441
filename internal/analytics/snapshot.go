package analytics

import "time"

// Fixed funnel label vocabulary as configured on the Chatwoot account.
const (
	LabelLeadsEntrantes = "leads_entrantes"
	LabelA              = "a_"
	LabelB1             = "b1"
	LabelB2             = "b2"
	LabelC1             = "c1"
	LabelCitaAgendada   = "cita_agendada"
)

// Tracked custom-attribute fields used for monetary totals and data capture.
const (
	AttrNombreCompleto = "nombre_completo"
	AttrCelular        = "celular"
	AttrAgencia        = "agencia"
	AttrFechaVisita    = "fecha_visita"
	AttrHoraVisita     = "hora_visita"
	AttrMontoOperacion = "monto_operacion"
)

// KPIs holds the headline funnel scalars for the selected window.
type KPIs struct {
	TotalLeads       int     `json:"totalLeads"`
	LeadsInteresados int     `json:"leadsInteresados"`
	CitasAgendadas   int     `json:"citasAgendadas"`
	NoCalifican      int     `json:"noCalifican"`
	TasaAgendamiento int     `json:"tasaAgendamiento"`
	TasaDescarte     int     `json:"tasaDescarte"`
	TasaRespuesta    int     `json:"tasaRespuesta"`
	GananciaMensual  float64 `json:"gananciaMensual"`
	GananciaTotal    float64 `json:"gananciaTotal"`
}

// FunnelStage is one step of the qualification funnel.
type FunnelStage struct {
	Label      string `json:"label"`
	Value      int    `json:"value"`
	Percentage int    `json:"percentage"`
	Color      string `json:"color"`
}

// Appointment is a scheduled visit projected from a cita_agendada record.
type Appointment struct {
	ID      int    `json:"id"`
	Nombre  string `json:"nombre"`
	Celular string `json:"celular"`
	Agencia string `json:"agencia"`
	Fecha   string `json:"fecha"`
	Hora    string `json:"hora"`
	Status  string `json:"status"`
}

// ChannelStat is the lead count of one acquisition channel.
type ChannelStat struct {
	Name       string `json:"name"`
	Count      int    `json:"count"`
	Percentage int    `json:"percentage"`
	Icon       string `json:"icon"`
	Color      string `json:"color"`
}

// WeekdayPoint is one weekday bucket of the weekly trend.
type WeekdayPoint struct {
	Week  string `json:"week"`
	Leads int    `json:"leads"`
	Citas int    `json:"citas"`
}

// WeekPoint is one week bucket of the monthly trend.
type WeekPoint struct {
	Date  string `json:"date"`
	Leads int    `json:"leads"`
	SQLs  int    `json:"sqls"`
	Citas int    `json:"citas"`
}

// DisqualificationReason is one entry of the disqualification breakdown.
type DisqualificationReason struct {
	Reason     string `json:"reason"`
	Count      int    `json:"count"`
	Percentage int    `json:"percentage"`
}

// FieldRate is the capture rate of one tracked attribute field.
type FieldRate struct {
	Field string `json:"field"`
	Rate  int    `json:"rate"`
}

// DataCapture summarizes attribute completeness among qualified leads.
type DataCapture struct {
	CompletionRate int         `json:"completionRate"`
	FieldRates     []FieldRate `json:"fieldRates"`
	Incomplete     int         `json:"incomplete"`
	FunnelDropoff  int         `json:"funnelDropoff"`
}

// MetricsSnapshot is the pipeline's sole output: one immutable, fully formed
// metrics bundle per computation cycle. Consumers always see a complete
// snapshot or the previous one, never a partial update.
type MetricsSnapshot struct {
	KPIs                    KPIs                     `json:"kpis"`
	FunnelData              []FunnelStage            `json:"funnelData"`
	RecentAppointments      []Appointment            `json:"recentAppointments"`
	ChannelData             []ChannelStat            `json:"channelData"`
	WeeklyTrend             []WeekdayPoint           `json:"weeklyTrend"`
	MonthlyTrend            []WeekPoint              `json:"monthlyTrend"`
	DisqualificationReasons []DisqualificationReason `json:"disqualificationReasons"`
	DataCapture             DataCapture              `json:"dataCapture"`
	ResponseTime            int                      `json:"responseTime"`
	ComputedAt              time.Time                `json:"computedAt"`
}
