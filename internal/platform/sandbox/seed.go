// Package sandbox is a self-contained stand-in for the remote EHR: an OAuth2
// token endpoint plus a small FHIR patient API over generated data. It exists
// so the gateway can be run and demoed without credentials to a real EHR.
package sandbox

import (
	"fmt"
	"math/rand"
	"time"
)

var (
	firstNamesMale = []string{
		"James", "Robert", "John", "Michael", "David", "William", "Richard",
		"Joseph", "Thomas", "Christopher", "Daniel", "Matthew", "Anthony",
		"Mark", "Steven", "Andrew", "Joshua", "Kevin", "Brian", "George",
	}
	firstNamesFemale = []string{
		"Mary", "Patricia", "Jennifer", "Linda", "Elizabeth", "Susan",
		"Jessica", "Sarah", "Karen", "Lisa", "Nancy", "Sandra", "Ashley",
		"Emily", "Michelle", "Amanda", "Melissa", "Stephanie", "Rebecca", "Laura",
	}
	lastNames = []string{
		"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller",
		"Davis", "Rodriguez", "Martinez", "Wilson", "Anderson", "Thomas",
		"Taylor", "Moore", "Jackson", "Lee", "Perez", "Thompson", "White",
	}

	streets = []string{
		"123 Main St", "456 Oak Ave", "789 Elm St", "321 Pine Rd",
		"654 Maple Dr", "987 Cedar Ln", "147 Birch Blvd", "258 Walnut Way",
	}
	cities = []string{
		"New York", "Chicago", "Houston", "Phoenix", "Philadelphia",
		"San Antonio", "Dallas", "Austin", "Columbus", "Charlotte",
	}
	states = []string{"NY", "IL", "TX", "AZ", "PA", "OH", "NC"}
	zips   = []string{"10001", "60601", "77001", "85001", "19101", "43201", "28201"}

	maritalStatuses = []struct {
		Code string
		Text string
	}{
		{"S", "Never Married"},
		{"M", "Married"},
		{"D", "Divorced"},
		{"W", "Widowed"},
	}

	ethnicities = []struct {
		Code string
		Text string
	}{
		{"2135-2", "Hispanic or Latino"},
		{"2186-5", "Not Hispanic or Latino"},
	}
)

const ethnicityExtensionURL = "http://hl7.org/fhir/us/core/StructureDefinition/us-core-ethnicity"

// Generator produces deterministic synthetic patient resources.
type Generator struct {
	rng     *rand.Rand
	counter uint64
}

// NewGenerator returns a generator for the given seed. Seed 0 picks a
// time-based one.
func NewGenerator(seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

func (g *Generator) nextID() string {
	g.counter++
	return fmt.Sprintf("pat-%08x-%04x", g.rng.Uint32(), g.counter)
}

func (g *Generator) pick(pool []string) string {
	return pool[g.rng.Intn(len(pool))]
}

func (g *Generator) randomDate(minYear, maxYear int) string {
	y := minYear + g.rng.Intn(maxYear-minYear+1)
	m := 1 + g.rng.Intn(12)
	d := 1 + g.rng.Intn(28) // safe for all months
	return fmt.Sprintf("%04d-%02d-%02d", y, m, d)
}

func (g *Generator) randomPhone() string {
	return fmt.Sprintf("(%03d) %03d-%04d",
		200+g.rng.Intn(800), 200+g.rng.Intn(800), g.rng.Intn(10000))
}

// Patient produces one synthetic FHIR Patient resource. The shape matches
// what the gateway's flattener reads: primary name, MRN identifier, telecom,
// address, maritalStatus with text, and the nested ethnicity extension.
func (g *Generator) Patient() map[string]interface{} {
	var firstName, gender string
	if g.rng.Intn(2) == 0 {
		firstName = g.pick(firstNamesMale)
		gender = "male"
	} else {
		firstName = g.pick(firstNamesFemale)
		gender = "female"
	}
	lastName := g.pick(lastNames)
	ms := maritalStatuses[g.rng.Intn(len(maritalStatuses))]
	eth := ethnicities[g.rng.Intn(len(ethnicities))]

	return map[string]interface{}{
		"resourceType": "Patient",
		"id":           g.nextID(),
		"active":       true,
		"meta": map[string]interface{}{
			"lastUpdated": g.randomDate(2023, 2025) + "T12:00:00Z",
			"versionId":   "1",
		},
		"identifier": []interface{}{
			map[string]interface{}{
				"system": "urn:oid:1.2.36.146.595.217.0.1",
				"value":  fmt.Sprintf("MRN-%08d", g.rng.Intn(100000000)),
			},
		},
		"name": []interface{}{
			map[string]interface{}{
				"use":    "official",
				"family": lastName,
				"given":  []interface{}{firstName},
			},
		},
		"gender":    gender,
		"birthDate": g.randomDate(1940, 2010),
		"telecom": []interface{}{
			map[string]interface{}{
				"system": "phone",
				"value":  g.randomPhone(),
				"use":    "home",
				"rank":   float64(1),
			},
			map[string]interface{}{
				"system": "email",
				"value":  fmt.Sprintf("%s.%s@example.com", firstName, lastName),
				"use":    "home",
			},
		},
		"address": []interface{}{
			map[string]interface{}{
				"use":        "home",
				"line":       []interface{}{g.pick(streets)},
				"city":       g.pick(cities),
				"state":      g.pick(states),
				"postalCode": g.pick(zips),
				"country":    "US",
			},
		},
		"maritalStatus": map[string]interface{}{
			"coding": []interface{}{
				map[string]interface{}{
					"system": "http://terminology.hl7.org/CodeSystem/v3-MaritalStatus",
					"code":   ms.Code,
				},
			},
			"text": ms.Text,
		},
		"extension": []interface{}{
			map[string]interface{}{
				"url": ethnicityExtensionURL,
				"extension": []interface{}{
					map[string]interface{}{
						"url": "ombCategory",
						"valueCoding": map[string]interface{}{
							"system": "urn:oid:2.16.840.1.113883.6.238",
							"code":   eth.Code,
						},
					},
					map[string]interface{}{
						"url":         "text",
						"valueString": eth.Text,
					},
				},
			},
		},
	}
}

// Patients produces n synthetic patients.
func (g *Generator) Patients(n int) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, g.Patient())
	}
	return out
}
