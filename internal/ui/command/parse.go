package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nhle/bugtracker/internal/model"
)

// Name identifies a palette command.
type Name string

const (
	Refresh Name = "refresh"
	NewBug  Name = "new"
	Logout  Name = "logout"
	Clear   Name = "clear"
	Quit    Name = "quit"
	Status  Name = "status"
	Filter  Name = "filter"
)

// Facets accepted by the filter command.
const (
	FacetDate    = "date"
	FacetStatus  = "status"
	FacetCreator = "creator"
)

// Command is a parsed palette line.
type Command struct {
	Name   Name
	Status model.Status
	Facet  string
	Value  string
}

var aliases = map[string]Name{
	"refresh": Refresh,
	"reload":  Refresh,
	"new":     NewBug,
	"create":  NewBug,
	"logout":  Logout,
	"clear":   Clear,
	"all":     Clear,
	"quit":    Quit,
	"q":       Quit,
	"status":  Status,
	"filter":  Filter,
}

// Parse turns a palette line into a Command.
func Parse(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, errors.New("empty command")
	}

	name, ok := aliases[strings.ToLower(fields[0])]
	if !ok {
		return Command{}, fmt.Errorf("unknown command %q", fields[0])
	}
	args := fields[1:]

	switch name {
	case Status:
		if len(args) != 1 {
			return Command{}, errors.New("usage: status <open|in_progress|closed|reopened>")
		}
		s, err := model.ParseStatus(args[0])
		if err != nil {
			return Command{}, err
		}
		return Command{Name: Status, Status: s}, nil

	case Filter:
		if len(args) < 2 {
			return Command{}, errors.New("usage: filter <date|status|creator> <value>")
		}
		facet := strings.ToLower(args[0])
		value := strings.Join(args[1:], " ")
		switch facet {
		case FacetDate, FacetCreator:
		case FacetStatus:
			s, err := model.ParseStatus(value)
			if err != nil {
				return Command{}, err
			}
			value = string(s)
		default:
			return Command{}, fmt.Errorf("unknown filter %q", args[0])
		}
		return Command{Name: Filter, Facet: facet, Value: value}, nil

	default:
		if len(args) != 0 {
			return Command{}, fmt.Errorf("%s takes no arguments", name)
		}
		return Command{Name: name}, nil
	}
}
