package device

// Well-known hub state names. The set of state names is open-ended and
// hub-defined; these are the ones the bridge itself interprets.
const (
	StateManufacturerName = "core:ManufacturerNameState"
	StateModel            = "core:ModelState"
	StateRSSILevel        = "core:RSSILevelState"
)

// AttrRSSILevel is the attribute key under which the RSSI state is surfaced
// in the Facade's attribute map.
const AttrRSSILevel = "rssi_level"

// DefaultManufacturer is assumed when no manufacturer state is reported.
const DefaultManufacturer = "Somfy"
