package pricing

import (
	"fmt"
	"math"
	"time"

	"github.com/Domenick1991/hotelbooking/internal/domain"
)

// Per person per night.
var mealRates = map[domain.MealPackage]float64{
	domain.MealPackageNone:      0,
	domain.MealPackageBreakfast: 15,
	domain.MealPackageHalfBoard: 35,
	domain.MealPackageFullBoard: 50,
}

// GuideRatePerNight is charged once per night regardless of party size.
const GuideRatePerNight = 100.0

type QuoteInput struct {
	PricePerNight  float64
	CheckIn        time.Time
	CheckOut       time.Time
	NumberOfGuests int
	MealPackage    domain.MealPackage
	Guide          bool
}

type Quote struct {
	Nights int     `json:"nights"`
	Room   float64 `json:"room"`
	Meals  float64 `json:"meals"`
	Guide  float64 `json:"guide"`
	Total  float64 `json:"total"`
}

// Nights counts calendar nights between the two dates.
func Nights(checkIn, checkOut time.Time) int {
	in := time.Date(checkIn.Year(), checkIn.Month(), checkIn.Day(), 0, 0, 0, 0, time.UTC)
	out := time.Date(checkOut.Year(), checkOut.Month(), checkOut.Day(), 0, 0, 0, 0, time.UTC)
	return int(out.Sub(in).Hours() / 24)
}

func Calculate(in QuoteInput) (Quote, error) {
	nights := Nights(in.CheckIn, in.CheckOut)
	if nights <= 0 {
		return Quote{}, domain.NewValidationError("check-out must be after check-in")
	}
	if in.NumberOfGuests <= 0 {
		return Quote{}, domain.NewValidationError("number of guests must be positive")
	}
	if in.PricePerNight < 0 {
		return Quote{}, domain.NewValidationError("price per night must not be negative")
	}
	rate, ok := mealRates[in.MealPackage]
	if !ok {
		return Quote{}, domain.NewValidationError(fmt.Sprintf("invalid meal package %q", in.MealPackage))
	}

	n, guests := float64(nights), float64(in.NumberOfGuests)
	q := Quote{
		Nights: nights,
		Room:   n * in.PricePerNight * guests,
		Meals:  n * rate * guests,
	}
	if in.Guide {
		q.Guide = n * GuideRatePerNight
	}
	q.Total = round2(q.Room + q.Meals + q.Guide)
	return q, nil
}

// Matches compares a submitted total with the quote to the cent.
func (q Quote) Matches(total domain.Amount) bool {
	return math.Abs(q.Total-float64(total)) < 0.01
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
