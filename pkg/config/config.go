// Package config handles the qstep configuration file and the
// environment overrides applied on top of it.
package config

import (
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"os/user"
	"path"
	"strings"

	"gopkg.in/yaml.v2"
)

const (
	configDir  string = ".qstep"
	configFile string = "config.yml"

	// EnvBreakpoints is a comma separated list of extra breakpoint
	// locations armed right after the session attaches, for targets
	// where the interesting address is known before the tool starts.
	EnvBreakpoints = "QSTEP_BREAKPOINTS"
)

// Config defines all configuration options available to be set
// through the config file.
type Config struct {
	// Command aliases.
	Aliases map[string][]string `yaml:"aliases"`

	// GDBPath is the gdb binary spawned to drive the target.
	GDBPath string `yaml:"gdb-path"`

	// StubAddr is the default remote stub address to attach to.
	StubAddr string `yaml:"stub-addr"`

	// EntrySymbol is run to with a hardware breakpoint right after
	// attach; early-boot code may still be executing from memory a
	// software breakpoint cannot be written to.
	EntrySymbol string `yaml:"entry-symbol"`

	// MainSymbol is run to with an ordinary breakpoint after the
	// entry symbol is reached.
	MainSymbol string `yaml:"main-symbol"`

	// EntryBreakpoints are additional locations armed after attach.
	EntryBreakpoints []string `yaml:"entry-breakpoints"`

	// SourceDirectories are added to the host debugger's source
	// search path.
	SourceDirectories []string `yaml:"source-directories"`
}

// LoadConfig attempts to populate a Config object from the config.yml
// file and the environment.
func LoadConfig() *Config {
	err := createConfigPath()
	if err != nil {
		fmt.Printf("Could not create config directory: %v.", err)
		return &Config{}
	}
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		fmt.Printf("Unable to get config file path: %v.", err)
		return &Config{}
	}

	f, err := os.Open(fullConfigFile)
	if err != nil {
		f, err = createDefaultConfig(fullConfigFile)
		if err != nil {
			fmt.Printf("Error creating default config file: %v", err)
			c := &Config{}
			c.ApplyEnv()
			return c
		}
	}
	defer func() {
		err := f.Close()
		if err != nil {
			fmt.Printf("Closing config file failed: %v.", err)
		}
	}()

	data, err := ioutil.ReadAll(f)
	if err != nil {
		fmt.Printf("Unable to read config data: %v.", err)
		return &Config{}
	}

	var c Config
	err = yaml.Unmarshal(data, &c)
	if err != nil {
		fmt.Printf("Unable to decode config file: %v.", err)
		return &Config{}
	}
	c.ApplyEnv()
	return &c
}

// ApplyEnv overlays environment-sourced settings on c.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvBreakpoints); v != "" {
		for _, spec := range strings.Split(v, ",") {
			spec = strings.TrimSpace(spec)
			if spec != "" {
				c.EntryBreakpoints = append(c.EntryBreakpoints, spec)
			}
		}
	}
}

// SaveConfig will marshal and save the config struct to disk.
func SaveConfig(conf *Config) error {
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(*conf)
	if err != nil {
		return err
	}

	f, err := os.Create(fullConfigFile)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(out)
	return err
}

func createDefaultConfig(path string) (*os.File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("unable to create config file: %v", err)
	}
	err = writeDefaultConfig(f)
	if err != nil {
		return nil, fmt.Errorf("unable to write default configuration: %v", err)
	}
	f.Seek(0, io.SeekStart)
	return f, nil
}

func writeDefaultConfig(f *os.File) error {
	_, err := f.WriteString(
		`# Configuration file for the qstep debugger driver.

# This is the default configuration file. Available options are provided, but disabled.
# Delete the leading hash mark to enable an item.

# Provide custom aliases for commands.
# aliases:
#   step3: ["ssi", "3"]

# Path of the gdb binary used to drive the target.
# gdb-path: gdb-multiarch

# Default remote stub address.
# stub-addr: localhost:1234

# Symbol reached with a hardware breakpoint right after attach.
# entry-symbol: _start

# Symbol reached with a software breakpoint after the entry symbol.
# main-symbol: kernel::main

# Additional breakpoint locations armed after attach.
# entry-breakpoints:
#   - "*0x200000"

# Directories added to the source search path.
# source-directories:
#   - kernel
`)
	return err
}

// createConfigPath creates the directory structure at which all config files are saved.
func createConfigPath() error {
	path, err := GetConfigFilePath("")
	if err != nil {
		return err
	}
	return os.MkdirAll(path, 0700)
}

// GetConfigFilePath gets the full path to the given config file name.
func GetConfigFilePath(fname string) (string, error) {
	usr, err := user.Current()
	if err != nil {
		return "", err
	}
	return path.Join(usr.HomeDir, configDir, fname), nil
}
