package core

import "strings"

// Symbol is a category icon identifier. The raw value is what gets persisted.
type Symbol string

const (
	SymbolGroceries         Symbol = "cart.fill"
	SymbolRestaurants       Symbol = "fork.knife"
	SymbolTakeout           Symbol = "takeoutbag.and.cup.and.straw"
	SymbolCoffee            Symbol = "cup.and.saucer"
	SymbolDesserts          Symbol = "birthday.cake"
	SymbolCar               Symbol = "car.fill"
	SymbolFuel              Symbol = "fuelpump.fill"
	SymbolPublicTransport   Symbol = "bus.fill"
	SymbolBicycle           Symbol = "bicycle"
	SymbolAirplane          Symbol = "airplane"
	SymbolShopping          Symbol = "bag.fill"
	SymbolCardPayment       Symbol = "creditcard.fill"
	SymbolGifts             Symbol = "gift.fill"
	SymbolDiscounts         Symbol = "tag.fill"
	SymbolRent              Symbol = "house.fill"
	SymbolElectricity       Symbol = "lightbulb.fill"
	SymbolWater             Symbol = "water.waves"
	SymbolInternet          Symbol = "wifi"
	SymbolHeating           Symbol = "thermometer.sun.fill"
	SymbolHealth            Symbol = "heart.fill"
	SymbolMedications       Symbol = "cross.case.fill"
	SymbolDoctor            Symbol = "stethoscope"
	SymbolBeauty            Symbol = "scissors"
	SymbolWellness          Symbol = "leaf.fill"
	SymbolMusic             Symbol = "music.note"
	SymbolMovies            Symbol = "film.fill"
	SymbolVideoGames        Symbol = "gamecontroller.fill"
	SymbolArts              Symbol = "paintbrush.fill"
	SymbolPhotography       Symbol = "camera.fill"
	SymbolBooks             Symbol = "book.fill"
	SymbolEducation         Symbol = "graduationcap.fill"
	SymbolStationery        Symbol = "pencil"
	SymbolLearningMaterials Symbol = "folder.fill"
	SymbolInvestments       Symbol = "chart.pie.fill"
	SymbolSavings           Symbol = "banknote.fill"
	SymbolWallet            Symbol = "wallet.pass.fill"
	SymbolFinance           Symbol = "dollarsign.circle.fill"
	SymbolFinancialAnalysis Symbol = "chart.bar.fill"
	SymbolLuggage           Symbol = "tram.fill"
	SymbolTravel            Symbol = "globe"
	SymbolMaps              Symbol = "map.fill"
	SymbolVacation          Symbol = "sun.max.fill"
	SymbolCamping           Symbol = "tent.fill"
	SymbolRepairs           Symbol = "wrench.and.screwdriver.fill"
	SymbolDocuments         Symbol = "doc.fill"
	SymbolPhoneBill         Symbol = "phone.fill"
	SymbolWork              Symbol = "briefcase.fill"
	SymbolFamilyExpenses    Symbol = "person.2.fill"
)

// DefaultSymbol is used when a persisted raw value is not recognised.
const DefaultSymbol = SymbolGroceries

var allSymbols = []Symbol{
	SymbolGroceries,
	SymbolRestaurants,
	SymbolTakeout,
	SymbolCoffee,
	SymbolDesserts,
	SymbolCar,
	SymbolFuel,
	SymbolPublicTransport,
	SymbolBicycle,
	SymbolAirplane,
	SymbolShopping,
	SymbolCardPayment,
	SymbolGifts,
	SymbolDiscounts,
	SymbolRent,
	SymbolElectricity,
	SymbolWater,
	SymbolInternet,
	SymbolHeating,
	SymbolHealth,
	SymbolMedications,
	SymbolDoctor,
	SymbolBeauty,
	SymbolWellness,
	SymbolMusic,
	SymbolMovies,
	SymbolVideoGames,
	SymbolArts,
	SymbolPhotography,
	SymbolBooks,
	SymbolEducation,
	SymbolStationery,
	SymbolLearningMaterials,
	SymbolInvestments,
	SymbolSavings,
	SymbolWallet,
	SymbolFinance,
	SymbolFinancialAnalysis,
	SymbolLuggage,
	SymbolTravel,
	SymbolMaps,
	SymbolVacation,
	SymbolCamping,
	SymbolRepairs,
	SymbolDocuments,
	SymbolPhoneBill,
	SymbolWork,
	SymbolFamilyExpenses,
}

var symbolSet = func() map[Symbol]struct{} {
	m := make(map[Symbol]struct{}, len(allSymbols))
	for _, s := range allSymbols {
		m[s] = struct{}{}
	}
	return m
}()

// Symbols returns every known symbol in display order.
func Symbols() []Symbol {
	return append([]Symbol(nil), allSymbols...)
}

func (s Symbol) Validate() error {
	if _, ok := symbolSet[s]; !ok {
		return ErrInvalidSymbol
	}
	return nil
}

// ParseSymbol returns the symbol for a raw value.
func ParseSymbol(raw string) (Symbol, error) {
	s := Symbol(strings.TrimSpace(raw))
	if err := s.Validate(); err != nil {
		return "", err
	}
	return s, nil
}

// SymbolOrDefault never fails; unknown raw values map to DefaultSymbol.
func SymbolOrDefault(raw string) Symbol {
	s, err := ParseSymbol(raw)
	if err != nil {
		return DefaultSymbol
	}
	return s
}
