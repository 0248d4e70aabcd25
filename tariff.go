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

// Fuel is the energy carrier a home buys heat with
type Fuel string

const (
	FuelGas         Fuel = "gas"
	FuelElectricity Fuel = "electricity"
	FuelHeatNetwork Fuel = "heat_network"
	FuelOil         Fuel = "oil"
)

// Tariff holds the unit prices (£/kWh) and carbon factors (kg/kWh) used for a run
type Tariff struct {
	Scenario string
	prices   FuelValues
	carbon   FuelValues
}

// NewTariff selects the active price scenario from the financial config
func NewTariff(f FinancialConfig) *Tariff {
	return &Tariff{
		Scenario: f.PriceScenario,
		prices:   f.Prices(),
		carbon:   f.CarbonFactors,
	}
}

// Price returns the unit price for a fuel in £/kWh
func (t *Tariff) Price(fuel Fuel) float64 {
	return valueForFuel(t.prices, fuel)
}

// Carbon returns the carbon intensity for a fuel in kgCO2/kWh
func (t *Tariff) Carbon(fuel Fuel) float64 {
	return valueForFuel(t.carbon, fuel)
}

// Cost returns the annual bill for buying kwh of a fuel
func (t *Tariff) Cost(fuel Fuel, kwh float64) float64 {
	return kwh * t.Price(fuel)
}

// Emissions returns the annual kgCO2 for buying kwh of a fuel
func (t *Tariff) Emissions(fuel Fuel, kwh float64) float64 {
	return kwh * t.Carbon(fuel)
}

func valueForFuel(v FuelValues, fuel Fuel) float64 {
	switch fuel {
	case FuelElectricity:
		return v.Electricity
	case FuelHeatNetwork:
		return v.HeatNetwork
	case FuelOil:
		return v.Oil
	default:
		return v.Gas
	}
}

// FuelFor returns the fuel a heating system currently buys
func FuelFor(system HeatingSystem) Fuel {
	switch system {
	case HeatingElectric, HeatingHeatPump:
		return FuelElectricity
	case HeatingDistrict:
		return FuelHeatNetwork
	case HeatingOil:
		return FuelOil
	default:
		return FuelGas
	}
}
