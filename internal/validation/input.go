package validation

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

// Константы валидации
const (
	MaxTitleLength   = 200
	MaxAddressLength = 300
	MaxLinkLength    = 500
	MaxNoteLength    = 2000
	MaxReasonLength  = 2000
)

// ValidateLength проверяет длину строки в символах.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateNonEmpty проверяет, что строка не пустая.
func ValidateNonEmpty(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s не может быть пустым", fieldName)
	}
	return nil
}

// ValidateLink проверяет ссылку на результат работы.
func ValidateLink(link string) error {
	linkStr := strings.TrimSpace(link)
	if err := ValidateNonEmpty("ссылка", linkStr); err != nil {
		return err
	}
	if err := ValidateLength("ссылка", linkStr, 0, MaxLinkLength); err != nil {
		return err
	}

	parsedURL, err := url.Parse(linkStr)
	if err != nil {
		return fmt.Errorf("некорректный формат URL")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("ссылка должна начинаться с http:// или https://")
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("ссылка должна содержать доменное имя")
	}
	return nil
}
