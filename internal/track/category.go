package track

// Category is the ADS-B emitter category
type Category int

const (
	CategoryNone Category = iota
	CategoryLight
	CategorySmall
	CategoryLarge
	CategoryHighVortex
	CategoryHeavy
	CategoryHighPerformance
	CategoryRotorcraft
	CategoryGlider
	CategoryLighterThanAir
	CategoryParachutist
	CategoryUltralight
	CategoryUAV
	CategorySpaceVehicle
	CategoryEmergencyVehicle
	CategoryServiceVehicle
	CategoryGroundObstruction
	CategoryClusterObstacle
	CategoryLineObstacle
	CategoryReserved
)

var categoryNames = [...]string{
	CategoryNone:              "None",
	CategoryLight:             "Light",
	CategorySmall:             "Small",
	CategoryLarge:             "Large",
	CategoryHighVortex:        "High vortex",
	CategoryHeavy:             "Heavy",
	CategoryHighPerformance:   "High performance",
	CategoryRotorcraft:        "Rotorcraft",
	CategoryGlider:            "Glider/sailplane",
	CategoryLighterThanAir:    "Lighter-than-air",
	CategoryParachutist:       "Parachutist",
	CategoryUltralight:        "Ultralight",
	CategoryUAV:               "UAV",
	CategorySpaceVehicle:      "Space vehicle",
	CategoryEmergencyVehicle:  "Emergency vehicle",
	CategoryServiceVehicle:    "Service vehicle",
	CategoryGroundObstruction: "Ground obstruction",
	CategoryClusterObstacle:   "Cluster obstacle",
	CategoryLineObstacle:      "Line obstacle",
	CategoryReserved:          "Reserved",
}

func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return categoryNames[CategoryReserved]
	}
	return categoryNames[c]
}

// MarshalText encodes the category by name
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Category sets A to C indexed by emitter code
var (
	categorySetA = [8]Category{
		CategoryNone, CategoryLight, CategorySmall, CategoryLarge,
		CategoryHighVortex, CategoryHeavy, CategoryHighPerformance, CategoryRotorcraft,
	}
	categorySetB = [8]Category{
		CategoryNone, CategoryGlider, CategoryLighterThanAir, CategoryParachutist,
		CategoryUltralight, CategoryReserved, CategoryUAV, CategorySpaceVehicle,
	}
	categorySetC = [8]Category{
		CategoryNone, CategoryEmergencyVehicle, CategoryServiceVehicle, CategoryGroundObstruction,
		CategoryClusterObstacle, CategoryLineObstacle, CategoryReserved, CategoryReserved,
	}
)

// CategoryFor maps an identification type code and emitter code to a category.
// TC 4 selects set A, 3 set B and 2 set C. TC 1 is reserved.
func CategoryFor(tc, ec uint8) Category {
	switch tc {
	case 4:
		return categorySetA[ec&7]
	case 3:
		return categorySetB[ec&7]
	case 2:
		return categorySetC[ec&7]
	}
	return CategoryReserved
}

// Emergency is the emergency state broadcast in aircraft status messages
type Emergency uint8

const (
	EmergencyNone Emergency = iota
	EmergencyGeneral
	EmergencyMedical
	EmergencyMinimumFuel
	EmergencyNoCommunications
	EmergencyUnlawfulInterference
	EmergencyDownedAircraft
	EmergencyReserved
)

var emergencyNames = [...]string{
	"No emergency",
	"General emergency",
	"Lifeguard/Medical",
	"Minimum fuel",
	"No communications",
	"Unlawful interference",
	"Downed aircraft",
	"Reserved",
}

func (e Emergency) String() string {
	return emergencyNames[e&7]
}

// MarshalText encodes the emergency state by name
func (e Emergency) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// SpeedType identifies what the speed field of a track holds
type SpeedType int

const (
	GroundSpeed SpeedType = iota
	TrueAirspeed
	IndicatedAirspeed
)

func (s SpeedType) String() string {
	switch s {
	case TrueAirspeed:
		return "TAS"
	case IndicatedAirspeed:
		return "IAS"
	}
	return "GS"
}

// MarshalText encodes the speed type by its abbreviation
func (s SpeedType) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
