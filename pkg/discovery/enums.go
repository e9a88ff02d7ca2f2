package discovery

import "strconv"

// Service names.
const (
	// ServiceHAP is the DNS-SD service type of IP accessories.
	ServiceHAP = "_hap._tcp"

	// DefaultDomain is the mDNS domain.
	DefaultDomain = "local."
)

// Category is the accessory category advertised in the "ci" key.
type Category uint16

const (
	CategoryOther              Category = 1
	CategoryBridge             Category = 2
	CategoryFan                Category = 3
	CategoryGarageDoorOpener   Category = 4
	CategoryLightbulb          Category = 5
	CategoryDoorLock           Category = 6
	CategoryOutlet             Category = 7
	CategorySwitch             Category = 8
	CategoryThermostat         Category = 9
	CategorySensor             Category = 10
	CategorySecuritySystem     Category = 11
	CategoryDoor               Category = 12
	CategoryWindow             Category = 13
	CategoryWindowCovering     Category = 14
	CategoryProgrammableSwitch Category = 15
	CategoryRangeExtender      Category = 16
	CategoryIPCamera           Category = 17
	CategoryVideoDoorbell      Category = 18
	CategoryAirPurifier        Category = 19
	CategoryHeater             Category = 20
	CategoryAirConditioner     Category = 21
	CategoryHumidifier         Category = 22
	CategoryDehumidifier       Category = 23
	CategorySprinkler          Category = 28
	CategoryFaucet             Category = 29
	CategoryShowerHead         Category = 30
	CategoryTelevision         Category = 31
	CategoryRemote             Category = 32
)

var categoryNames = map[Category]string{
	CategoryOther:              "Other",
	CategoryBridge:             "Bridge",
	CategoryFan:                "Fan",
	CategoryGarageDoorOpener:   "Garage Door Opener",
	CategoryLightbulb:          "Lightbulb",
	CategoryDoorLock:           "Door Lock",
	CategoryOutlet:             "Outlet",
	CategorySwitch:             "Switch",
	CategoryThermostat:         "Thermostat",
	CategorySensor:             "Sensor",
	CategorySecuritySystem:     "Security System",
	CategoryDoor:               "Door",
	CategoryWindow:             "Window",
	CategoryWindowCovering:     "Window Covering",
	CategoryProgrammableSwitch: "Programmable Switch",
	CategoryRangeExtender:      "Range Extender",
	CategoryIPCamera:           "IP Camera",
	CategoryVideoDoorbell:      "Video Doorbell",
	CategoryAirPurifier:        "Air Purifier",
	CategoryHeater:             "Heater",
	CategoryAirConditioner:     "Air Conditioner",
	CategoryHumidifier:         "Humidifier",
	CategoryDehumidifier:       "Dehumidifier",
	CategorySprinkler:          "Sprinkler",
	CategoryFaucet:             "Faucet",
	CategoryShowerHead:         "Shower Head",
	CategoryTelevision:         "Television",
	CategoryRemote:             "Remote",
}

// String returns the category name, or its number when unknown.
func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "Category(" + strconv.Itoa(int(c)) + ")"
}

// StatusFlags is the bit field advertised in the "sf" key.
type StatusFlags uint8

const (
	// StatusNotPaired is set while the accessory has no controller.
	StatusNotPaired StatusFlags = 0x01
	// StatusWiFiNotConfigured is set when the accessory has not joined a network.
	StatusWiFiNotConfigured StatusFlags = 0x02
	// StatusProblem is set when the accessory detected a problem.
	StatusProblem StatusFlags = 0x04
)

// FeatureFlags is the bit field advertised in the "ff" key.
type FeatureFlags uint8

const (
	// FeatureHardwareAuth indicates an authentication coprocessor.
	FeatureHardwareAuth FeatureFlags = 0x01
	// FeatureSoftwareAuth indicates software token authentication.
	FeatureSoftwareAuth FeatureFlags = 0x02
)
