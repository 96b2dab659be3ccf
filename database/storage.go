package database

import "gorm.io/gorm"

// Storage defines the lifecycle the server needs from its database.
type Storage interface {
	Init() error
	Close() error
	HealthCheck() error
	DB() *gorm.DB
}
