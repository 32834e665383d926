package gattdb

// Seed tables for well-known Bluetooth SIG assigned numbers. Deliberately a
// working subset; vendor packs extend the tables through Declare.

var sigServices = map[string]string{
	"1800": "GenericAccess",
	"1801": "GenericAttribute",
	"1802": "ImmediateAlert",
	"1803": "LinkLoss",
	"1804": "TxPower",
	"1805": "CurrentTime",
	"180a": "DeviceInformation",
	"180d": "HeartRate",
	"180f": "Battery",
	"1810": "BloodPressure",
	"1811": "AlertNotification",
	"1812": "HumanInterfaceDevice",
	"1815": "Automation IO",
	"1819": "LocationAndNavigation",
	"181a": "EnvironmentalSensing",
}

var sigCharacteristics = map[string]string{
	"2a00": "DeviceName",
	"2a01": "Appearance",
	"2a04": "PeripheralPreferredConnectionParameters",
	"2a05": "ServiceChanged",
	"2a19": "BatteryLevel",
	"2a23": "SystemId",
	"2a24": "ModelNumberString",
	"2a25": "SerialNumberString",
	"2a26": "FirmwareRevisionString",
	"2a27": "HardwareRevisionString",
	"2a28": "SoftwareRevisionString",
	"2a29": "ManufacturerNameString",
	"2a2b": "CurrentTime",
	"2a37": "HeartRateMeasurement",
	"2a38": "BodySensorLocation",
	"2a6e": "Temperature",
	"2a6f": "Humidity",
}

// Well-known locations read for the classifier basic-info snapshot.
const (
	SvcGenericAccess     = "1800"
	SvcDeviceInformation = "180a"

	ChrDeviceName       = "2a00"
	ChrManufacturerName = "2a29"
	ChrModelNumber      = "2a24"
	ChrSerialNumber     = "2a25"
	ChrFirmwareRev      = "2a26"
	ChrHardwareRev      = "2a27"
	ChrSoftwareRev      = "2a28"
)
