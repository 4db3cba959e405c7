package models

import "strings"

type OrderStatus string

const (
	StatusPending   OrderStatus = "pendiente"
	StatusInProcess OrderStatus = "en_proceso"
	StatusDelivered OrderStatus = "entregado"
)

// StatusFilterAll matches every status in listings and exports.
const StatusFilterAll = "all"

var statusLabels = map[OrderStatus]string{
	StatusPending:   "Pendiente",
	StatusInProcess: "En proceso",
	StatusDelivered: "Entregado",
}

func (s OrderStatus) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

func (s OrderStatus) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// ParseStatusFilter turns a query value into a status filter. The empty
// string and "all" both mean no filter and yield ok with an empty status.
func ParseStatusFilter(v string) (OrderStatus, bool) {
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, StatusFilterAll) {
		return "", true
	}
	s := OrderStatus(v)
	return s, s.Valid()
}
