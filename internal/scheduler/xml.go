package scheduler

import (
	"encoding/xml"
	"io"
	"strings"

	"github.com/opencga/catalog-core/internal/catalogerr"
)

// ActiveJob is one entry of the scheduler's active queue.
type ActiveJob struct {
	Name  string
	State string
}

// ParseActiveQueue streams the scheduler's `qstat -xml`-style document
// and yields the {job_list/JB_name, job_list/state} pairs directly,
// per §9's "do not drag in a general XML toolkit's object model —
// a small, well-typed parser is sufficient". It uses the standard
// library's token-based xml.Decoder rather than unmarshaling into a
// full document tree, since only two leaf fields per job_list element
// are ever needed.
func ParseActiveQueue(r io.Reader) ([]ActiveJob, error) {
	dec := xml.NewDecoder(r)

	var jobs []ActiveJob
	var current *ActiveJob
	var textTarget *string

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, catalogerr.InvalidArgument("parsing scheduler active-queue XML: %v", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "job_list":
				current = &ActiveJob{}
			case "JB_name":
				if current != nil {
					textTarget = &current.Name
				}
			case "state":
				if current != nil {
					textTarget = &current.State
				}
			}
		case xml.CharData:
			if textTarget != nil {
				*textTarget += strings.TrimSpace(string(t))
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "JB_name", "state":
				textTarget = nil
			case "job_list":
				if current != nil {
					jobs = append(jobs, *current)
					current = nil
				}
			}
		}
	}
	return jobs, nil
}
