package config

import "errors"

var (
	errPercentRange    = errors.New("percent must be between 1 and 99")
	errBitsRange       = errors.New("min-bits and max-bits must be between 0 and 63")
	errBitsOrder       = errors.New("min-bits must be <= max-bits")
	errDirEmpty        = errors.New("directory must not be empty")
	errConfigFileRead  = errors.New("reading config file")
	errConfigFileParse = errors.New("parsing config file")
)
