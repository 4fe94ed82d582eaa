package actor

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/ShayCichocki/quill/pkg/models"
)

// PlanParse is the outcome of ParsePlan. Notes list every normalization applied.
type PlanParse struct {
	Plan     *models.TaskPlan
	Strategy PlanStrategy
	Notes    []string
}

var (
	errNoGoal  = errors.New("plan has no mainGoal")
	errNoTasks = errors.New("plan has no tasks")
)

// ParsePlan turns raw planner output into a plan. It tries strict JSON,
// repaired JSON and a field scan in order, and synthesizes a two-node plan
// for goal when none of them yields a valid plan. It never fails.
func ParsePlan(raw, goal string) PlanParse {
	var notes []string

	for _, candidate := range jsonObjectCandidates(raw) {
		plan, n, err := decodePlan(candidate)
		if err == nil {
			return PlanParse{Plan: plan, Strategy: StrategyJSON, Notes: n}
		}
		notes = appendNote(notes, "json: %v", err)
	}

	for _, candidate := range repairCandidates(raw) {
		if plan, n, err := decodePlan(candidate); err == nil {
			return PlanParse{Plan: plan, Strategy: StrategyRepaired, Notes: append(notes, n...)}
		}
	}
	notes = appendNote(notes, "repaired: no candidate decoded")

	plan, n, err := scanFields(raw, goal)
	if err == nil {
		return PlanParse{Plan: plan, Strategy: StrategyFields, Notes: append(notes, n...)}
	}
	notes = appendNote(notes, "fields: %v", err)

	notes = appendNote(notes, "using fallback plan")
	return PlanParse{Plan: FallbackPlan(goal), Strategy: StrategyFallback, Notes: notes}
}

// FallbackPlan is the plan used when planner output cannot be parsed:
// research the goal, then analyze the findings.
func FallbackPlan(goal string) *models.TaskPlan {
	goal = strings.TrimSpace(goal)
	if goal == "" {
		goal = "Complete the requested work"
	}
	return &models.TaskPlan{
		MainGoal: goal,
		Tasks: []models.PlannedTask{
			{
				Title:        "Research: " + shorten(goal, 60),
				Description:  "Gather the information needed to accomplish: " + goal,
				ActorType:    models.ActorResearcher,
				Dependencies: []string{},
				Priority:     models.PriorityHigh,
			},
			{
				Title:        "Analyze findings",
				Description:  "Analyze the research findings and draw conclusions for: " + goal,
				ActorType:    models.ActorAnalyst,
				Dependencies: []string{"0"},
				Priority:     models.PriorityMedium,
			},
		},
	}
}

func appendNote(notes []string, format string, args ...any) []string {
	return append(notes, fmt.Sprintf(format, args...))
}

func decodePlan(candidate string) (*models.TaskPlan, []string, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(candidate), &m); err != nil {
		return nil, nil, err
	}
	goal, tasks := planFromMap(m)
	return normalizePlan(goal, tasks)
}

func planFromMap(m map[string]any) (string, []map[string]any) {
	if nested, ok := m["plan"].(map[string]any); ok {
		return planFromMap(nested)
	}
	goal := field(m, "mainGoal", "main_goal", "goal")
	var tasks []map[string]any
	if list, ok := m["tasks"].([]any); ok {
		for _, item := range list {
			if t, ok := item.(map[string]any); ok {
				tasks = append(tasks, t)
			}
		}
	}
	return goal, tasks
}

// normalizePlan validates a decoded plan and coerces its fields:
// unknown or reserved actor types become researcher, dependencies become
// strings and priorities default to medium.
func normalizePlan(goal string, raw []map[string]any) (*models.TaskPlan, []string, error) {
	goal = strings.TrimSpace(goal)
	if goal == "" {
		return nil, nil, errNoGoal
	}
	if len(raw) == 0 {
		return nil, nil, errNoTasks
	}

	var notes []string
	plan := &models.TaskPlan{MainGoal: goal, Tasks: make([]models.PlannedTask, 0, len(raw))}
	for i, t := range raw {
		pt := models.PlannedTask{
			Title:               field(t, "title", "name"),
			Description:         field(t, "description", "details"),
			EstimatedCompletion: field(t, "estimatedCompletion", "estimated_completion", "estimate"),
			Priority:            models.ParsePriority(field(t, "priority")),
			Dependencies:        dependencyList(t),
		}
		if pt.Title == "" {
			pt.Title = shorten(pt.Description, 60)
		}
		if pt.Title == "" {
			pt.Title = fmt.Sprintf("Step %d", i+1)
		}

		ref := field(t, "actorType", "actor_type", "actor", "type")
		actorType, customID, ok := models.ParseActorType(ref)
		if ok && actorType == models.ActorCustom && customID == "" {
			customID = field(t, "customActorId", "custom_actor_id")
		}
		switch {
		case !ok:
			notes = appendNote(notes, "task %d: unknown actor %q, using researcher", i, ref)
			actorType, customID = models.ActorResearcher, ""
		case actorType == models.ActorPlanner || actorType == models.ActorComposer:
			notes = appendNote(notes, "task %d: %s cannot be assigned, using researcher", i, actorType)
			actorType, customID = models.ActorResearcher, ""
		case actorType == models.ActorCustom && customID == "":
			notes = appendNote(notes, "task %d: custom actor without id, using researcher", i)
			actorType = models.ActorResearcher
		}
		pt.ActorType = actorType
		pt.CustomActorID = customID

		plan.Tasks = append(plan.Tasks, pt)
	}
	return plan, notes, nil
}

func dependencyList(t map[string]any) []string {
	deps := []string{}
	var raw any
	for _, key := range []string{"dependencies", "dependsOn", "depends_on"} {
		if v, ok := t[key]; ok {
			raw = v
			break
		}
	}
	switch v := raw.(type) {
	case []any:
		for _, d := range v {
			if s := scalarString(d); s != "" {
				deps = append(deps, s)
			}
		}
	case nil:
	default:
		if s := scalarString(v); s != "" {
			deps = append(deps, s)
		}
	}
	return deps
}

func field(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s := scalarString(v); s != "" {
				return s
			}
		}
	}
	return ""
}

func scalarString(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}

func shorten(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	head := runePrefix(s, n)
	if cut := strings.LastIndex(head, " "); cut > 0 {
		head = head[:cut]
	}
	return head + "..."
}

// jsonObjectCandidates returns every balanced top-level object in s, in order.
func jsonObjectCandidates(s string) []string {
	var out []string
	for start := 0; start < len(s) && len(out) < 8; {
		i := strings.IndexByte(s[start:], '{')
		if i < 0 {
			break
		}
		i += start
		obj, ok := balancedObject(s[i:])
		if !ok {
			break
		}
		out = append(out, obj)
		start = i + len(obj)
	}
	return out
}

// balancedObject returns the object starting at s[0] up to its matching brace.
func balancedObject(s string) (string, bool) {
	depth := 0
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
		}
	}
	return s, false
}

var (
	fenceStrip     = regexp.MustCompile("(?m)^\\s*```[A-Za-z]*\\s*$")
	trailingComma  = regexp.MustCompile(`,(\s*[}\]])`)
	bareKey        = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)(\s*:)`)
	smartQuoteRepl = strings.NewReplacer("“", `"`, "”", `"`, "‘", "'", "’", "'")
)

// repairCandidates returns progressively more aggressive repairs of the
// first object-like region of s. An object cut off mid-stream is closed
// before anything else is tried.
func repairCandidates(s string) []string {
	s = fenceStrip.ReplaceAllString(s, "")
	s = smartQuoteRepl.Replace(s)
	i := strings.IndexByte(s, '{')
	if i < 0 {
		return nil
	}
	s = s[i:]

	if obj, ok := balancedObject(s); ok {
		return repairVariants(obj)
	}
	out := []string{
		stripTrailingCommas(closeTruncated(s)),
		quoteBareKeys(stripTrailingCommas(closeTruncated(singleToDouble(s)))),
	}
	if j := strings.LastIndexByte(s, '}'); j >= 0 {
		out = append(out, repairVariants(s[:j+1])...)
	}
	return out
}

func repairVariants(obj string) []string {
	singles := stripTrailingCommas(singleToDouble(obj))
	return []string{stripTrailingCommas(obj), singles, quoteBareKeys(singles)}
}

func stripTrailingCommas(s string) string {
	return outsideStrings(s, func(seg string) string {
		return trailingComma.ReplaceAllString(seg, "$1")
	})
}

func quoteBareKeys(s string) string {
	return outsideStrings(s, func(seg string) string {
		return bareKey.ReplaceAllString(seg, `$1"$2"$3`)
	})
}

// outsideStrings applies fn to every run of s that is not inside a
// double-quoted JSON string.
func outsideStrings(s string, fn func(string) string) string {
	var out, seg strings.Builder
	inString, escaped := false, false
	flush := func() {
		out.WriteString(fn(seg.String()))
		seg.Reset()
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			out.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		if c == '"' {
			flush()
			out.WriteByte(c)
			inString = true
			continue
		}
		seg.WriteByte(c)
	}
	flush()
	return out.String()
}

// singleToDouble rewrites single-quoted strings as double-quoted ones.
func singleToDouble(s string) string {
	var out strings.Builder
	const (
		none = iota
		inDouble
		inSingle
	)
	state, escaped := none, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch state {
		case inDouble:
			out.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				state = none
			}
		case inSingle:
			switch {
			case escaped:
				if c != '\'' {
					out.WriteByte('\\')
				}
				out.WriteByte(c)
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				out.WriteString(`\"`)
			case c == '\'':
				out.WriteByte('"')
				state = none
			default:
				out.WriteByte(c)
			}
		default:
			switch c {
			case '"':
				state = inDouble
				out.WriteByte(c)
			case '\'':
				state = inSingle
				out.WriteByte('"')
			default:
				out.WriteByte(c)
			}
		}
	}
	return out.String()
}

// closeTruncated terminates an object cut off mid-stream: it closes an open
// string and every open bracket.
func closeTruncated(s string) string {
	var stack []byte
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	if inString {
		s += `"`
	}
	s = strings.TrimRight(s, " \t\r\n,")
	if strings.HasSuffix(s, ":") {
		s += "null"
	}
	for i := len(stack) - 1; i >= 0; i-- {
		s += string(stack[i])
	}
	return s
}

var (
	goalField     = regexp.MustCompile(`["']?(?:mainGoal|main_goal)["']?\s*:\s*"((?:[^"\\]|\\.)*)"`)
	titleField    = regexp.MustCompile(`["']?title["']?\s*:\s*"((?:[^"\\]|\\.)*)"`)
	descField     = regexp.MustCompile(`["']?description["']?\s*:\s*"((?:[^"\\]|\\.)*)"`)
	actorField    = regexp.MustCompile(`["']?(?:actorType|actor_type|actor)["']?\s*:\s*"((?:[^"\\]|\\.)*)"`)
	priorityField = regexp.MustCompile(`["']?priority["']?\s*:\s*["']?([A-Za-z]+)`)
	depsField     = regexp.MustCompile(`["']?(?:dependencies|dependsOn|depends_on)["']?\s*:\s*\[([^\]]*)\]`)
	indexToken    = regexp.MustCompile(`\d+`)
)

// scanFields recovers a plan from output too broken to decode. It first asks
// gjson for the tasks array and falls back to scanning per-title regions.
func scanFields(raw, goal string) (*models.TaskPlan, []string, error) {
	body := raw
	if i := strings.IndexByte(body, '{'); i >= 0 {
		body = body[i:]
	}

	g := gjson.Get(body, "mainGoal").String()
	if g == "" {
		if m := goalField.FindStringSubmatch(body); m != nil {
			g = m[1]
		}
	}
	var notes []string
	if strings.TrimSpace(g) == "" {
		g = goal
		notes = appendNote(notes, "fields: mainGoal missing, using task goal")
	}

	var tasks []map[string]any
	if arr := gjson.Get(body, "tasks"); arr.IsArray() {
		for _, item := range arr.Array() {
			if m, ok := item.Value().(map[string]any); ok && field(m, "title", "description") != "" {
				tasks = append(tasks, m)
			}
		}
	}
	if len(tasks) == 0 {
		tasks = scanTaskRegions(body)
	}

	plan, n, err := normalizePlan(g, tasks)
	return plan, append(notes, n...), err
}

func scanTaskRegions(body string) []map[string]any {
	locs := titleField.FindAllStringSubmatchIndex(body, -1)
	tasks := make([]map[string]any, 0, len(locs))
	for i, loc := range locs {
		end := len(body)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		region := body[loc[0]:end]
		t := map[string]any{"title": unescape(body[loc[2]:loc[3]])}
		if m := descField.FindStringSubmatch(region); m != nil {
			t["description"] = unescape(m[1])
		}
		if m := actorField.FindStringSubmatch(region); m != nil {
			t["actorType"] = m[1]
		}
		if m := priorityField.FindStringSubmatch(region); m != nil {
			t["priority"] = m[1]
		}
		if m := depsField.FindStringSubmatch(region); m != nil {
			var deps []any
			for _, d := range indexToken.FindAllString(m[1], -1) {
				deps = append(deps, d)
			}
			t["dependencies"] = deps
		}
		tasks = append(tasks, t)
	}
	return tasks
}

func unescape(s string) string {
	if out, err := strconv.Unquote(`"` + s + `"`); err == nil {
		return out
	}
	return s
}
