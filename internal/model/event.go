package model

// Event is a lifecycle transition trigger. The lifecycle controller's
// transition table is total over (VMState, Event): every pair either
// names a destination state or is illegal.
type Event string

const (
	EventProvision  Event = "provision"
	EventFirstBoot  Event = "first_boot"
	EventCheckpoint Event = "checkpoint"
	EventSave       Event = "save"
	EventResume     Event = "resume"
	EventStop       Event = "stop"
	EventRestore    Event = "restore"
	EventDestroy    Event = "destroy"
	EventFail       Event = "driver_failure"
)
