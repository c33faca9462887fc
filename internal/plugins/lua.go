package plugins

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Plugins every generated configuration loads after the selected ones.
var builtinPlugins = []string{"HostFiles", "Vmi", "BaseInstructions"}

// GenerateConfig renders the s2e-config.lua for the selected plugins with the
// values in cfg. projectDir is the directory HostFiles and Vmi serve files
// from. Option keys are written in sorted order.
func GenerateConfig(selected []Plugin, cfg UserConfig, projectDir string) (string, error) {
	var b strings.Builder

	b.WriteString("s2e = {\n")
	b.WriteString("\tkleeArgs = {}\n")
	b.WriteString("}\n\n")

	b.WriteString("plugins = {\n")
	for _, p := range selected {
		fmt.Fprintf(&b, "\t%s,\n", luaString(p.Name))
	}
	for i, name := range builtinPlugins {
		fmt.Fprintf(&b, "\t%s", luaString(name))
		if i != len(builtinPlugins)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("}\n\n")

	b.WriteString("pluginsConfig = {}\n\n")
	for _, p := range selected {
		if len(p.ConfigOption) == 0 {
			continue
		}
		fmt.Fprintf(&b, "pluginsConfig.%s = {\n", p.Name)
		if err := writeOptions(&b, p.ConfigOption, cfg[p.Name], 1); err != nil {
			return "", fmt.Errorf("plugins: %s: %w", p.Name, err)
		}
		b.WriteString("}\n\n")
	}

	dir := luaString(projectDir)
	b.WriteString("pluginsConfig.HostFiles = {\n")
	fmt.Fprintf(&b, "\tbaseDirs = {%s},\n", dir)
	b.WriteString("\tallowWrite = true,\n")
	b.WriteString("}\n")

	b.WriteString("pluginsConfig.Vmi = {\n")
	fmt.Fprintf(&b, "\tbaseDirs = {%s}\n", dir)
	b.WriteString("}\n")

	b.WriteString("dofile('library.lua')\n")
	b.WriteString("add_plugin(\"LinuxMonitor\")\n")
	b.WriteString("pluginsConfig.LinuxMonitor = {\n")
	b.WriteString("\t-- Kill the execution state when it encounters a segfault\n")
	b.WriteString("\tterminateOnSegFault = true,\n")
	b.WriteString("\t-- Kill the execution state when it encounters a trap\n")
	b.WriteString("\tterminateOnTrap = true,\n")
	b.WriteString("}\n")

	return b.String(), nil
}

// writeOptions writes one Lua table body. Every option in pattern must have
// a value in values.
func writeOptions(b *strings.Builder, pattern map[string]Option, values map[string]any, depth int) error {
	entries, err := optionEntries(pattern, values, depth)
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		b.WriteString(strings.Join(entries, ",\n"))
		b.WriteString("\n")
	}
	return nil
}

// optionEntries renders each table field on its own. A list option expands
// to one named sub-table per group.
func optionEntries(pattern map[string]Option, values map[string]any, depth int) ([]string, error) {
	indent := strings.Repeat("\t", depth)
	var entries []string
	for _, key := range sortedKeys(pattern) {
		opt := pattern[key]
		value, ok := values[key]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingValue, key)
		}
		if err := Check(value, opt); err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}

		switch opt.Type {
		case TypeList:
			groups := value.(map[string]any)
			for _, gk := range sortedKeys(groups) {
				var sub strings.Builder
				fmt.Fprintf(&sub, "%s%s = {\n", indent, gk)
				if err := writeOptions(&sub, opt.Content, groups[gk].(map[string]any), depth+1); err != nil {
					return nil, fmt.Errorf("%s.%s: %w", key, gk, err)
				}
				fmt.Fprintf(&sub, "%s}", indent)
				entries = append(entries, sub.String())
			}
		case TypeBool:
			v, _ := asBool(value)
			entries = append(entries, fmt.Sprintf("%s%s = %t", indent, key, v))
		case TypeInt:
			v, _ := asInt(value)
			entries = append(entries, fmt.Sprintf("%s%s = %d", indent, key, v))
		case TypeString:
			entries = append(entries, fmt.Sprintf("%s%s = %s", indent, key, luaString(value.(string))))
		case TypeStringList, TypeIntList:
			list := value.([]any)
			elems := make([]string, len(list))
			for j, e := range list {
				if opt.Type == TypeIntList {
					v, _ := asInt(e)
					elems[j] = strconv.FormatInt(v, 10)
				} else {
					elems[j] = luaString(e.(string))
				}
			}
			entries = append(entries, fmt.Sprintf("%s%s = {%s}", indent, key, strings.Join(elems, ", ")))
		}
	}
	return entries, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// luaString quotes s as a Lua string literal.
func luaString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case 0:
			b.WriteString(`\0`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
