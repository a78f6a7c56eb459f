// Package config holds the options of an archive run and the per-site
// settings read from the .freezedry file.
package config
