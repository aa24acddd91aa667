// Package database 提供 GORM 数据库连接的打开与连接池管理。
package database
