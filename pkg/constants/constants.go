package constants

const (
	ConfigName   = "config"
	ConfigFormat = "yaml"
	EnvPrefix    = "SIMORQ"
)

// NATS subjects.
const (
	SubjectSessionEnded        = "simorq.session.ended"
	SubjectSettlementCompleted = "simorq.settlement.completed"
	SubjectSettlementFailed    = "simorq.settlement.failed"
	SubjectAlertPrefix         = "simorq.alert"
	SubjectNotificationPrefix  = "simorq.notification.new"
	QueueSettlementWorkers     = "settlement-workers"
)
