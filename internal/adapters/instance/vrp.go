package instance

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"vrp-search-service/internal/domain"
)

// ErrFormat is returned for instance text that cannot be parsed.
var ErrFormat = errors.New("instance: malformed input")

type section int

const (
	sectionNone section = iota
	sectionCoords
	sectionDemands
	sectionDepot
)

// ParseVRP reads a CVRPLIB instance (TSPLIB format, EUC_2D weights).
// Points are renumbered so the depot is id 0 and customers keep their file
// order.
func ParseVRP(r io.Reader, opts domain.InstanceOptions) (*domain.Instance, error) {
	var (
		name      string
		capacity  int
		dimension int
		depot     = -1
		coords    = map[int]domain.Point{}
		demands   = map[int]int{}
		order     []int
		sec       section
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if line == "EOF" {
			break
		}

		if key, value, ok := strings.Cut(line, ":"); ok {
			key = strings.TrimSpace(key)
			value = strings.TrimSpace(value)
			sec = sectionNone
			switch key {
			case "NAME":
				name = value
			case "CAPACITY":
				c, err := strconv.Atoi(value)
				if err != nil {
					return nil, fmt.Errorf("parse vrp: line %d: capacity %q: %w", lineNo, value, ErrFormat)
				}
				capacity = c
			case "DIMENSION":
				d, err := strconv.Atoi(value)
				if err != nil {
					return nil, fmt.Errorf("parse vrp: line %d: dimension %q: %w", lineNo, value, ErrFormat)
				}
				dimension = d
			case "EDGE_WEIGHT_TYPE":
				if value != "EUC_2D" {
					return nil, fmt.Errorf("parse vrp: edge weight type %q not supported: %w", value, ErrFormat)
				}
			}
			continue
		}

		switch line {
		case "NODE_COORD_SECTION":
			sec = sectionCoords
			continue
		case "DEMAND_SECTION":
			sec = sectionDemands
			continue
		case "DEPOT_SECTION":
			sec = sectionDepot
			continue
		}

		fields := strings.Fields(line)
		switch sec {
		case sectionCoords:
			if len(fields) != 3 {
				return nil, fmt.Errorf("parse vrp: line %d: want \"id x y\": %w", lineNo, ErrFormat)
			}
			id, err1 := strconv.Atoi(fields[0])
			x, err2 := strconv.ParseFloat(fields[1], 64)
			y, err3 := strconv.ParseFloat(fields[2], 64)
			if err := errors.Join(err1, err2, err3); err != nil {
				return nil, fmt.Errorf("parse vrp: line %d: %v: %w", lineNo, err, ErrFormat)
			}
			if _, dup := coords[id]; !dup {
				order = append(order, id)
			}
			coords[id] = domain.Point{X: x, Y: y}
		case sectionDemands:
			if len(fields) != 2 {
				return nil, fmt.Errorf("parse vrp: line %d: want \"id demand\": %w", lineNo, ErrFormat)
			}
			id, err1 := strconv.Atoi(fields[0])
			d, err2 := strconv.Atoi(fields[1])
			if err := errors.Join(err1, err2); err != nil {
				return nil, fmt.Errorf("parse vrp: line %d: %v: %w", lineNo, err, ErrFormat)
			}
			demands[id] = d
		case sectionDepot:
			id, err := strconv.Atoi(fields[0])
			if err != nil {
				return nil, fmt.Errorf("parse vrp: line %d: depot %q: %w", lineNo, fields[0], ErrFormat)
			}
			if id != -1 && depot == -1 {
				depot = id
			}
		default:
			return nil, fmt.Errorf("parse vrp: line %d: unexpected %q: %w", lineNo, line, ErrFormat)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("parse vrp: read: %w", err)
	}

	if len(order) == 0 {
		return nil, fmt.Errorf("parse vrp %q: no NODE_COORD_SECTION: %w", name, ErrFormat)
	}
	if dimension > 0 && dimension != len(order) {
		return nil, fmt.Errorf("parse vrp %q: dimension %d but %d coordinates: %w", name, dimension, len(order), ErrFormat)
	}
	if depot == -1 {
		depot = order[0]
	}
	if _, ok := coords[depot]; !ok {
		return nil, fmt.Errorf("parse vrp %q: depot %d has no coordinates: %w", name, depot, ErrFormat)
	}

	points := make([]domain.Point, 0, len(order))
	points = append(points, coords[depot])
	for _, id := range order {
		if id == depot {
			continue
		}
		d, ok := demands[id]
		if !ok {
			return nil, fmt.Errorf("parse vrp %q: node %d has no demand: %w", name, id, ErrFormat)
		}
		p := coords[id]
		p.Demand = d
		points = append(points, p)
	}

	return domain.NewInstance(name, points, capacity, opts)
}
