package core

import "sync"

// The reference codebase loads this dictionary from JSON/freeradius-format files
// at bootstrap (file, http or database origin). That multi-origin loading
// machinery is "configuration file parsing", which the EAP core treats as an
// external collaborator it does not design. This repo instead ships a small
// static dictionary scoped to the attributes the EAP dispatch core and the
// tunnel-password rewrap actually touch.
var (
	radiusDictOnce sync.Once
	radiusDict     *RadiusDict
)

func staticRadiusDictItems() []RadiusAVPDictItem {
	return []RadiusAVPDictItem{
		{Code: 1, Name: "User-Name", RadiusType: RadiusTypeString},
		{Code: 2, Name: "User-Password", RadiusType: RadiusTypeOctets, Encrypted: true},
		{Code: 3, Name: "CHAP-Password", RadiusType: RadiusTypeOctets},
		{Code: 4, Name: "NAS-IP-Address", RadiusType: RadiusTypeAddress},
		{Code: 18, Name: "Reply-Message", RadiusType: RadiusTypeString},
		{Code: 24, Name: "State", RadiusType: RadiusTypeOctets},
		{Code: 27, Name: "Session-Timeout", RadiusType: RadiusTypeInteger},
		{Code: 30, Name: "Called-Station-Id", RadiusType: RadiusTypeString},
		{Code: 31, Name: "Calling-Station-Id", RadiusType: RadiusTypeString},
		{Code: 60, Name: "CHAP-Challenge", RadiusType: RadiusTypeOctets},
		{Code: 69, Name: "Tunnel-Password", RadiusType: RadiusTypeString, Tagged: true, Salted: true},
		{Code: 79, Name: "EAP-Message", RadiusType: RadiusTypeOctets, Concat: true},
		{Code: 80, Name: "Message-Authenticator", RadiusType: RadiusTypeOctets},
		{VendorId: 9, Code: 1, Name: "Cisco-AVPair", RadiusType: RadiusTypeString},
		{VendorId: 311, Code: 7, Name: "MS-MPPE-Send-Key", RadiusType: RadiusTypeOctets, Salted: true},
		{VendorId: 311, Code: 8, Name: "MS-MPPE-Recv-Key", RadiusType: RadiusTypeOctets, Salted: true},
	}
}

func initStaticDictionary() {
	radiusDict = &RadiusDict{
		VendorById:   map[uint32]string{9: "Cisco", 311: "Microsoft"},
		VendorByName: map[string]uint32{"Cisco": 9, "Microsoft": 311},
		AVPByCode:    make(map[RadiusAVPCode]*RadiusAVPDictItem),
		AVPByName:    make(map[string]*RadiusAVPDictItem),
	}
	for _, item := range staticRadiusDictItems() {
		it := item
		radiusDict.AVPByCode[RadiusAVPCode{VendorId: it.VendorId, Code: it.Code}] = &it
		radiusDict.AVPByName[it.Name] = &it
	}
}

// GetRDict returns the process-wide static radius dictionary, building it on
// first use.
func GetRDict() *RadiusDict {
	radiusDictOnce.Do(initStaticDictionary)
	return radiusDict
}
