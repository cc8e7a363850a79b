// Package models holds the gorm rows behind the delivery repositories. Rows
// stay out of the domain package; each file pairs a row type with its
// to/from domain mappers.
//
// Credential and session rows are unique per (restaurant, platform). Sync
// logs and audit entries are append-only. Menu rows belong to the menu
// service and are only read here.
package models
