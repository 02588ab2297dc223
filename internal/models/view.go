package models

import "fmt"

type View string

const (
	ViewForm     View = "form"
	ViewMatching View = "matching"
	ViewHistory  View = "history"
)

func ParseView(s string) (View, error) {
	v := View(s)
	if !v.Valid() {
		return "", fmt.Errorf("unknown view %q", s)
	}
	return v, nil
}

func (v View) Valid() bool {
	switch v {
	case ViewForm, ViewMatching, ViewHistory:
		return true
	}
	return false
}
