// Package validation содержит функции валидации входных данных.
package validation

// IsValidMonth проверяет формат расчётного месяца вида YYYY-MM.
func IsValidMonth(month string) bool {
	if len(month) != 7 {
		return false
	}

	for i := 0; i < len(month); i++ {
		if i == 4 {
			if month[i] != '-' {
				return false
			}
			continue
		}
		if month[i] < '0' || month[i] > '9' {
			return false
		}
	}

	mm := int(month[5]-'0')*10 + int(month[6]-'0')
	return mm >= 1 && mm <= 12
}
