// Package config 提供 VakaFlow 的配置管理功能。
//
// 支持从默认值、YAML 文件和环境变量（VAKAFLOW_ 前缀）加载配置，
// 后者覆盖前者。
package config
