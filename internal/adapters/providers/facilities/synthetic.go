package facilities

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/zatekoja/carecompanion/internal/domain/entities"
)

const syntheticMaxOffset = 0.05

type archetype struct {
	name        string
	kind        entities.FacilityType
	specialties []string
	emergency   bool
	hours       string
}

var archetypes = []archetype{
	{"City General Hospital", entities.FacilityTypeGeneralHospital, []string{"General Practice", "Emergency", "Surgery"}, true, "24/7"},
	{"Regional Medical Center", entities.FacilityTypeGeneralHospital, []string{"General Practice", "Internal Medicine", "Radiology"}, true, "24/7"},
	{"Community Health Clinic", entities.FacilityTypeSpecialtyClinic, []string{"General Practice", "Family Medicine"}, false, "Mon-Fri 8AM-6PM"},
	{"QuickCare Urgent Care", entities.FacilityTypeUrgentCare, []string{"Urgent Care", "General Practice"}, false, "Daily 8AM-10PM"},
	{"Metro Emergency Hospital", entities.FacilityTypeEmergencyCare, []string{"Emergency", "Trauma Care"}, true, "24/7"},
	{"Women's Health Center", entities.FacilityTypeSpecialtyClinic, []string{"Obstetrics", "Gynecology", "Maternal Care"}, false, "Mon-Sat 8AM-6PM"},
	{"Vision & Eye Center", entities.FacilityTypeSpecialtyClinic, []string{"Ophthalmology", "Vision Care"}, false, "Mon-Fri 9AM-5PM"},
	{"Heart & Vascular Institute", entities.FacilityTypeSpecialtyClinic, []string{"Cardiology", "Vascular Surgery"}, true, "24/7"},
}

// Synthesize places the fixed archetype template around center. The layout is
// a pure function of center so repeated calls return the same facilities.
func Synthesize(center entities.Coordinate) []entities.Facility {
	rng := rand.New(rand.NewPCG(math.Float64bits(center.Lat), math.Float64bits(center.Lng)))

	out := make([]entities.Facility, 0, len(archetypes))
	for i, a := range archetypes {
		coord := entities.Coordinate{
			Lat: center.Lat + (rng.Float64()*2-1)*syntheticMaxOffset,
			Lng: center.Lng + (rng.Float64()*2-1)*syntheticMaxOffset,
		}
		out = append(out, entities.Facility{
			ID:                fmt.Sprintf("synthetic-%d", i+1),
			Name:              a.name,
			Type:              a.kind,
			Rating:            float64(35+rng.IntN(16)) / 10,
			Address:           fmt.Sprintf("%d Health Way", 100+rng.IntN(900)),
			Phone:             fmt.Sprintf("(555) %d-%d", 100+rng.IntN(900), 1000+rng.IntN(9000)),
			Specialties:       append([]string(nil), a.specialties...),
			EmergencyServices: a.emergency,
			OperatingHours:    a.hours,
			EstimatedWaitTime: fmt.Sprintf("%d minutes", 15+rng.IntN(46)),
			AcceptsInsurance:  true,
			Coordinates:       coord,
			Source:            entities.FacilitySourceSynthetic,
		})
	}
	return out
}
