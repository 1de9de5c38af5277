package city

import "github.com/JakeFAU/worldclock/internal/locale"

// DefaultCityID is the city selected when nothing else is configured or stored.
const DefaultCityID = "seoul"

func entry(id, zone, ko, en string, x, y float64) City {
	return City{
		ID:       id,
		TimeZone: zone,
		Labels:   map[locale.Language]string{locale.Korean: ko, locale.English: en},
		Position: Position{X: x, Y: y},
	}
}

// Defaults returns the built-in world map. It mixes both hemispheres, DST and
// non-DST zones, and the half- and quarter-hour offsets of India and Nepal.
func Defaults() []City {
	return []City{
		entry("seoul", "Asia/Seoul", "서울", "Seoul", 85.27, 29.13),
		entry("tokyo", "Asia/Tokyo", "도쿄", "Tokyo", 88.80, 30.18),
		entry("shanghai", "Asia/Shanghai", "상하이", "Shanghai", 83.74, 32.65),
		entry("newdelhi", "Asia/Kolkata", "뉴델리", "New Delhi", 71.45, 34.11),
		entry("kathmandu", "Asia/Kathmandu", "카트만두", "Kathmandu", 73.70, 34.60),
		entry("dubai", "Asia/Dubai", "두바이", "Dubai", 65.35, 36.00),
		entry("moscow", "Europe/Moscow", "모스크바", "Moscow", 60.45, 19.02),
		entry("london", "Europe/London", "런던", "London", 49.96, 21.38),
		entry("paris", "Europe/Paris", "파리", "Paris", 50.65, 22.86),
		entry("newyork", "America/New_York", "뉴욕", "New York", 29.44, 27.38),
		entry("losangeles", "America/Los_Angeles", "로스앤젤레스", "Los Angeles", 17.16, 31.08),
		entry("saopaulo", "America/Sao_Paulo", "상파울루", "São Paulo", 37.05, 63.08),
		entry("sydney", "Australia/Sydney", "시드니", "Sydney", 92.00, 68.82),
		entry("auckland", "Pacific/Auckland", "오클랜드", "Auckland", 98.54, 70.47),
		entry("honolulu", "Pacific/Honolulu", "호놀룰루", "Honolulu", 6.15, 38.16),
	}
}
