package services

import (
	"fmt"
	"math"
	"strings"
)

// currencyWords maps ISO currency codes to the plural and singular
// word used on printed receipts and invoices.
var currencyWords = map[string][2]string{
	"HNL": {"LEMPIRAS", "LEMPIRA"},
	"USD": {"DÓLARES", "DÓLAR"},
}

// AmountInWords converts an amount to Spanish words for the given currency.
// Example: 1500.50, "HNL" -> "UN MIL QUINIENTOS LEMPIRAS CON 50/100"
func AmountInWords(amount float64, currency string) string {
	names, ok := currencyWords[strings.ToUpper(currency)]
	if !ok {
		names = [2]string{strings.ToUpper(currency), strings.ToUpper(currency)}
	}

	integerPart := int64(amount)
	decimalPart := int64(math.Round((amount - float64(integerPart)) * 100))

	if integerPart == 0 && decimalPart == 0 {
		return fmt.Sprintf("CERO %s CON 00/100", names[0])
	}

	// "UN LEMPIRA", otherwise plural
	if integerPart == 1 {
		return fmt.Sprintf("UN %s CON %02d/100", names[1], decimalPart)
	}

	words := convertNumberToWords(integerPart)
	return fmt.Sprintf("%s %s CON %02d/100", strings.ToUpper(words), names[0], decimalPart)
}

// NumberToWords converts an amount to Spanish words in lempiras, the
// default billing currency.
func NumberToWords(amount float64) string {
	return AmountInWords(amount, "HNL")
}

func convertNumberToWords(n int64) string {
	if n == 0 {
		return "CERO"
	}

	if n < 0 {
		return "MENOS " + convertNumberToWords(-n)
	}

	if n < 10 {
		return units[n]
	}

	if n < 30 {
		return specials[n]
	}

	if n < 100 {
		u := n % 10
		t := n / 10
		if u == 0 {
			return tens[t]
		}
		return fmt.Sprintf("%s Y %s", tens[t], units[u])
	}

	if n < 1000 {
		hundredsPart := n / 100
		remainder := n % 100
		if remainder == 0 {
			return hundreds[hundredsPart]
		}
		if hundredsPart == 1 {
			return "CIENTO " + convertNumberToWords(remainder)
		}
		return fmt.Sprintf("%s %s", hundreds[hundredsPart], convertNumberToWords(remainder))
	}

	if n < 1000000 {
		thousands := n / 1000
		remainder := n % 1000

		thousandsText := ""
		if thousands == 1 {
			thousandsText = "MIL"
		} else {
			thousandsText = convertNumberToWords(thousands) + " MIL"
		}

		if remainder == 0 {
			return thousandsText
		}
		return fmt.Sprintf("%s %s", thousandsText, convertNumberToWords(remainder))
	}

	if n < 1000000000000 {
		millions := n / 1000000
		remainder := n % 1000000

		millionsText := ""
		if millions == 1 {
			millionsText = "UN MILLÓN"
		} else {
			millionsText = convertNumberToWords(millions) + " MILLONES"
		}

		if remainder == 0 {
			return millionsText
		}
		return fmt.Sprintf("%s %s", millionsText, convertNumberToWords(remainder))
	}

	return "NÚMERO MUY GRANDE"
}

var units = []string{
	"", "UNO", "DOS", "TRES", "CUATRO", "CINCO", "SEIS", "SIETE", "OCHO", "NUEVE",
}

var specials = map[int64]string{
	10: "DIEZ", 11: "ONCE", 12: "DOCE", 13: "TRECE", 14: "CATORCE", 15: "QUINCE",
	16: "DIECISÉIS", 17: "DIECISIETE", 18: "DIECIOCHO", 19: "DIECINUEVE",
	20: "VEINTE", 21: "VEINTIUNO", 22: "VEINTIDÓS", 23: "VEINTITRÉS", 24: "VEINTICUATRO",
	25: "VEINTICINCO", 26: "VEINTISÉIS", 27: "VEINTISIETE", 28: "VEINTIOCHO", 29: "VEINTINUEVE",
}

var tens = []string{
	"", "", "VEINTE", "TREINTA", "CUARENTA", "CINCUENTA", "SESENTA", "SETENTA", "OCHENTA", "NOVENTA",
}

var hundreds = []string{
	"", "CIEN", "DOSCIENTOS", "TRESCIENTOS", "CUATROCIENTOS", "QUINIENTOS", "SEISCIENTOS", "SETECIENTOS", "OCHOCIENTOS", "NOVECIENTOS",
}
