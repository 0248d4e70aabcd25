// Copyright 2025 Matthew Gall <me@matthewgall.dev>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"regexp"
	"strconv"
	"strings"
)

// Free-text EPC descriptions are mapped onto enums here and nowhere else.
// The rest of the model only reads the classified fields.

var loftThicknessPattern = regexp.MustCompile(`(\d+)\+?\s*mm`)

var oilPattern = regexp.MustCompile(`\boil\b`)

// ClassifyWall returns the wall construction type and whether it is insulated
func ClassifyWall(desc string) (WallType, bool) {
	d := strings.ToLower(desc)

	wallType := WallOther
	switch {
	case strings.Contains(d, "cavity"):
		wallType = WallCavity
	case strings.Contains(d, "solid"), strings.Contains(d, "sandstone"),
		strings.Contains(d, "limestone"), strings.Contains(d, "granite"):
		wallType = WallSolid
	}

	insulated := false
	switch {
	case strings.Contains(d, "no insulation"), strings.Contains(d, "partial insulation"),
		strings.Contains(d, "uninsulated"):
		insulated = false
	case strings.Contains(d, "filled cavity"),
		strings.Contains(d, "external insulation"),
		strings.Contains(d, "internal insulation"),
		strings.Contains(d, "insulated"):
		insulated = true
	}

	return wallType, insulated
}

// IsSolidBrick reports whether the walls are solid brick
func IsSolidBrick(desc string) bool {
	return strings.Contains(strings.ToLower(desc), "solid brick")
}

// ClassifyGlazing returns the dominant glazing category
func ClassifyGlazing(desc string) GlazingType {
	d := strings.ToLower(desc)
	switch {
	case d == "":
		return GlazingUnknown
	case strings.Contains(d, "triple"):
		return GlazingTriple
	case strings.Contains(d, "single"),
		strings.Contains(d, "some double"),
		strings.Contains(d, "partial double"):
		return GlazingSingle
	case strings.Contains(d, "double"),
		strings.Contains(d, "multiple"),
		strings.Contains(d, "secondary"),
		strings.Contains(d, "high performance"):
		return GlazingDouble
	default:
		return GlazingUnknown
	}
}

// ClassifyLoft estimates loft insulation thickness and how confident the estimate is
func ClassifyLoft(desc string) (float64, Confidence) {
	d := strings.ToLower(desc)
	assumed := strings.Contains(d, "assumed")

	if m := loftThicknessPattern.FindStringSubmatch(d); m != nil {
		mm, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			return mm, ConfidenceHigh
		}
	}

	switch {
	case strings.Contains(d, "another dwelling above"), strings.Contains(d, "other premises above"):
		return 300, ConfidenceHigh
	case strings.Contains(d, "no insulation"):
		if assumed {
			return 0, ConfidenceMedium
		}
		return 0, ConfidenceHigh
	case strings.Contains(d, "limited insulation"), strings.Contains(d, "partial insulation"):
		return 50, ConfidenceLow
	case strings.Contains(d, "insulated"):
		if assumed {
			return 150, ConfidenceLow
		}
		return 200, ConfidenceMedium
	default:
		return 100, ConfidenceLow
	}
}

// ClassifyRoofText reads what the roof description says about insulation
func ClassifyRoofText(desc string) RoofText {
	d := strings.ToLower(desc)
	switch {
	case strings.Contains(d, "no insulation"):
		return RoofTextNone
	case strings.Contains(d, "limited insulation"), strings.Contains(d, "partial insulation"):
		return RoofTextPartial
	case strings.Contains(d, "insulat"), strings.Contains(d, "dwelling above"), strings.Contains(d, "premises above"):
		return RoofTextGood
	default:
		return RoofTextUnknown
	}
}

// ClassifyHeating returns the main heating system category
func ClassifyHeating(desc string) HeatingSystem {
	d := strings.ToLower(desc)
	switch {
	case strings.Contains(d, "heat pump"):
		return HeatingHeatPump
	case strings.Contains(d, "community"), strings.Contains(d, "district"), strings.Contains(d, "heat network"):
		return HeatingDistrict
	case strings.Contains(d, "mains gas"), strings.Contains(d, "gas"):
		return HeatingGasBoiler
	case oilPattern.MatchString(d):
		return HeatingOil
	case strings.Contains(d, "electric"):
		return HeatingElectric
	default:
		return HeatingOther
	}
}

// ClassifyCylinder reports whether the hot water description implies a storage cylinder
func ClassifyCylinder(desc string) bool {
	d := strings.ToLower(desc)
	if strings.Contains(d, "no cylinder") && !strings.Contains(d, "no cylinder thermostat") {
		return false
	}
	return strings.Contains(d, "cylinder") || strings.Contains(d, "immersion")
}

// ParseRating maps an EPC energy-efficiency rating string onto a Rating
func ParseRating(text string) Rating {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "very good":
		return RatingVeryGood
	case "good":
		return RatingGood
	case "average":
		return RatingAverage
	case "poor":
		return RatingPoor
	case "very poor":
		return RatingVeryPoor
	default:
		return RatingUnknown
	}
}

// ClassifyProperty derives every fabric flag from the property's descriptions
func ClassifyProperty(p *Property) {
	p.WallType, p.WallInsulated = ClassifyWall(p.WallsDescription)
	p.SolidBrick = p.WallType == WallSolid && IsSolidBrick(p.WallsDescription)
	p.Glazing = ClassifyGlazing(p.WindowsDescription)
	p.LoftThicknessMM, p.LoftConfidence = ClassifyLoft(p.RoofDescription)
	p.RoofText = ClassifyRoofText(p.RoofDescription)
	p.RoofRating = ParseRating(p.RoofEnergyEff)
	p.FloorRating = ParseRating(p.FloorEnergyEff)
	p.HeatingSystem = ClassifyHeating(p.MainheatDescription)
	p.HasCylinder = ClassifyCylinder(p.HotwaterDescription)
	p.EPCAnomaly = FlagEPCAnomaly(p)
}

// FlagEPCAnomaly reports whether the EPC band contradicts the classified fabric.
// Poor fabric rated A-D, or good fabric rated F/G, is anomalous.
func FlagEPCAnomaly(p *Property) bool {
	roofPoor := p.RoofRating.IsPoor() || p.RoofText == RoofTextNone

	poorCount := 0
	if p.WallType == WallSolid && !p.WallInsulated {
		poorCount++
	}
	if roofPoor {
		poorCount++
	}
	if p.Glazing == GlazingSingle {
		poorCount++
	}

	switch p.EPCBand {
	case BandA, BandB, BandC, BandD:
		return poorCount >= 2
	case BandF, BandG:
		goodGlazing := p.Glazing == GlazingDouble || p.Glazing == GlazingTriple
		return p.WallInsulated && !roofPoor && goodGlazing
	default:
		return false
	}
}
