package sim

import (
	"fmt"
	"strconv"
	"strings"
)

// NameMustBeValid panics if the name does not follow the naming convention.
// A name is a dot separated hierarchy such as "Bridge.Frontend.Queue[0]".
// Each element must be non-empty, start with a capital letter, contain no
// "_", "-" or quotes, and index elements of a series with square brackets.
func NameMustBeValid(name string) {
	if err := validateName(name); err != nil {
		panic("Name " + name + " is not valid: " + err.Error())
	}
}

func validateName(name string) error {
	for _, token := range strings.Split(name, ".") {
		if err := validateNameToken(token); err != nil {
			return err
		}
	}

	return nil
}

func validateNameToken(token string) error {
	elem, indices, hasIndex := strings.Cut(token, "[")
	if elem == "" {
		return fmt.Errorf("name element must not be empty")
	}

	if strings.ContainsAny(elem, "_\"'-]") {
		return fmt.Errorf("name element %q has invalid characters", elem)
	}

	if elem[0] < 'A' || elem[0] > 'Z' {
		return fmt.Errorf("name element %q must start with a capital letter", elem)
	}

	if !hasIndex {
		return nil
	}

	for _, idx := range strings.Split("["+indices, "[")[1:] {
		num, ok := strings.CutSuffix(idx, "]")
		if !ok {
			return fmt.Errorf("name bracket must match")
		}

		if _, err := strconv.Atoi(num); err != nil {
			return fmt.Errorf("name index must be integer")
		}
	}

	return nil
}

// BuildName builds a name from a parent name and an element name.
func BuildName(parentName, elementName string) string {
	if parentName == "" {
		return elementName
	}

	return parentName + "." + elementName
}

// BuildNameWithIndex builds a name from a parent name, an element name and an
// index.
func BuildNameWithIndex(parentName, elementName string, index int) string {
	return BuildName(parentName, elementName+"["+strconv.Itoa(index)+"]")
}
