// Package output renders CLI results as tables, JSON, or YAML.
package output
