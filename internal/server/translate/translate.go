// Package translate implements the optional translation-prefix intercept of
// spec.md §4.5: when a final recognized text opens with a recognized
// "please translate" command, the remainder is sent to a configured
// translation endpoint and the Result's text is replaced with the
// translation. Grounded on original_source/util/server/translate_prefix.py's
// parse_translate_command/_translate_via_mtran, translated into the
// teacher's net/http POST-JSON client idiom
// (pkg/providers/llm/openai.go).
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

var cnPrefixes = []string{"请翻译为", "请翻译"}
var enPrefixes = []string{"please translate to", "please translate"}

var leadingSeparators = " \t\r\n:：,，。.;；!?！？、…"

var bracketOpen = "([{（【《<"
var bracketClose = ")]}）】》>"

var leadingPunct = map[rune]bool{}

func init() {
	for _, r := range "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~" +
		"，。！？；：、…·“”‘’「」『』（）【】《》〈〉" {
		leadingPunct[r] = true
	}
}

// langAliasCN maps Chinese language names to ISO codes, as in
// translate_prefix.py's _LANG_ALIASES_CN.
var langAliasCN = map[string]string{
	"英语": "en", "英文": "en",
	"中文": "zh", "汉语": "zh",
	"简体中文": "zh-CN", "繁体中文": "zh-TW",
	"日语": "ja", "日文": "ja",
	"西班牙语": "es", "西语": "es",
	"法语": "fr", "法文": "fr",
	"德语": "de", "德文": "de",
	"俄语": "ru", "俄文": "ru",
	"韩语": "ko", "朝鲜语": "ko",
	"葡萄牙语": "pt", "葡语": "pt",
	"意大利语": "it", "意语": "it",
	"阿拉伯语": "ar",
	"印地语":  "hi",
	"泰语":   "th",
	"越南语":  "vi",
	"土耳其语": "tr",
	"印尼语":     "id",
	"印度尼西亚语": "id",
	"马来语":    "ms",
}

var langAliasEN = map[string]string{
	"english": "en",
	"chinese": "zh", "simplified chinese": "zh-CN", "traditional chinese": "zh-TW",
	"japanese":   "ja",
	"spanish":    "es",
	"french":     "fr",
	"german":     "de",
	"russian":    "ru",
	"korean":     "ko",
	"portuguese": "pt",
	"italian":    "it",
	"arabic":     "ar",
	"hindi":      "hi",
	"thai":       "th",
	"vietnamese": "vi",
	"turkish":    "tr",
	"indonesian": "id",
	"malay":      "ms",
}

type aliasEntry struct {
	alias string
	code  string
}

var cnAliasesSorted = sortedAliases(langAliasCN)
var enAliasesSorted = sortedAliases(langAliasEN)

func sortedAliases(m map[string]string) []aliasEntry {
	entries := make([]aliasEntry, 0, len(m))
	for alias, code := range m {
		entries = append(entries, aliasEntry{alias: alias, code: code})
	}
	sort.Slice(entries, func(i, j int) bool {
		return len([]rune(entries[i].alias)) > len([]rune(entries[j].alias))
	})
	return entries
}

// Command is a parsed "please translate ..." instruction.
type Command struct {
	TargetLang string
	Content    string
	Trigger    string
}

// ParseCommand returns the parsed Command if text opens with a recognized
// translate-prefix trigger, or ok=false otherwise.
func ParseCommand(text string) (Command, bool) {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return Command{}, false
	}

	for _, prefix := range cnPrefixes {
		if strings.HasPrefix(raw, prefix) {
			lang, content := parseTargetAndContent(raw[len(prefix):])
			return Command{TargetLang: lang, Content: content, Trigger: prefix}, true
		}
	}

	lower := strings.ToLower(raw)
	for _, prefix := range enPrefixes {
		if strings.HasPrefix(lower, prefix) {
			lang, content := parseTargetAndContent(raw[len(prefix):])
			return Command{TargetLang: lang, Content: content, Trigger: prefix}, true
		}
	}

	return Command{}, false
}

func trimLeadingSeparators(s string) string {
	return strings.TrimLeft(s, leadingSeparators)
}

func stripOptionalBracketsPrefix(s string) string {
	v := strings.TrimLeft(s, " \t\r\n")
	if v == "" {
		return v
	}
	if !strings.ContainsRune(bracketOpen, rune(v[0])) {
		return v
	}
	return strings.TrimLeft(v[1:], " \t\r\n")
}

func stripOptionalBracketsAfterLang(s string) string {
	v := strings.TrimLeft(s, " \t\r\n")
	if v != "" && strings.ContainsRune(bracketClose, rune(v[0])) {
		v = v[1:]
	}
	return trimLeadingSeparators(v)
}

func matchCNAlias(rest string) (string, string, bool) {
	for _, e := range cnAliasesSorted {
		if strings.HasPrefix(rest, e.alias) {
			tail := stripOptionalBracketsAfterLang(rest[len(e.alias):])
			return e.code, tail, true
		}
	}
	return "", "", false
}

func isAlnumOrUnderscore(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func matchENAlias(rest string) (string, string, bool) {
	lower := strings.ToLower(rest)
	for _, e := range enAliasesSorted {
		if !strings.HasPrefix(lower, e.alias) {
			continue
		}
		tail := rest[len(e.alias):]
		if tail != "" && isAlnumOrUnderscore(tail[0]) {
			continue
		}
		tail = stripOptionalBracketsAfterLang(tail)
		return e.code, tail, true
	}
	return "", "", false
}

var isoCodeBoundary = ":：,，。;；!?！？、)]}）】》>"

func matchISOCode(rest string) (string, string, bool) {
	i := 0
	for i < len(rest) && isLetter(rest[i]) {
		i++
	}
	if i < 2 || i > 3 {
		return "", "", false
	}
	code := rest[:i]
	tail := rest[i:]
	if len(tail) >= 2 && (tail[0] == '-' || tail[0] == '_') {
		j := i + 1
		for j < len(rest) && isLetter(rest[j]) {
			j++
		}
		if j-(i+1) >= 2 && j-(i+1) <= 4 {
			code = rest[:i] + "-" + rest[i+1:j]
			tail = rest[j:]
		}
	}
	code = strings.ReplaceAll(code, "_", "-")
	if tail != "" {
		r := rune(tail[0])
		if !isSpaceRune(r) && !strings.ContainsRune(isoCodeBoundary, r) {
			return "", "", false
		}
	}
	return code, stripOptionalBracketsAfterLang(tail), true
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isSpaceRune(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func parseTargetAndContent(rest string) (string, string) {
	text := trimLeadingSeparators(rest)
	if text == "" {
		return "en", ""
	}

	candidates := []string{text, stripOptionalBracketsPrefix(text)}
	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if code, content, ok := matchCNAlias(candidate); ok {
			return code, strings.TrimSpace(content)
		}
		if code, content, ok := matchENAlias(candidate); ok {
			return code, strings.TrimSpace(content)
		}
		if code, content, ok := matchISOCode(candidate); ok {
			return code, strings.TrimSpace(content)
		}
	}

	return "en", strings.TrimSpace(text)
}

func stripLeadingPunctuation(s string) string {
	runes := []rune(s)
	i := 0
	for i < len(runes) && (isSpaceRune(runes[i]) || leadingPunct[runes[i]]) {
		i++
	}
	return strings.TrimSpace(string(runes[i:]))
}

// Config is the subset of spec.md §6's translate_* keys this package needs.
type Config struct {
	Enabled    bool
	ServerURL  string
	SourceLang string
	Timeout    time.Duration
	APIToken   string
}

// Client talks to a Google-v2-compatible (or native MTran) translation
// endpoint over HTTP, mirroring translate_prefix.py's _translate_via_mtran
// dual-endpoint fallback.
type Client struct {
	cfg  Config
	http *http.Client
}

// New builds a Client bound to cfg. A zero-value ServerURL makes every
// Translate call a no-op returning a "no server_url configured" error, so
// callers can construct one unconditionally.
func New(cfg Config) *Client {
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

type translateV2Request struct {
	Q      string `json:"q"`
	Target string `json:"target"`
	Source string `json:"source"`
	Format string `json:"format"`
}

type translateV2Response struct {
	Data struct {
		Translations []struct {
			TranslatedText string `json:"translatedText"`
		} `json:"translations"`
	} `json:"data"`
}

type translateNativeRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Text string `json:"text"`
	HTML bool   `json:"html"`
}

type translateNativeResponse struct {
	Result         string `json:"result"`
	Translation    string `json:"translation"`
	TranslatedText string `json:"translatedText"`
}

// Translate sends text to the configured endpoint and returns the cleaned
// translation. Tries the Google v2-compatible route first, then the native
// MTran route, matching the Python reference's fallback order.
func (c *Client) Translate(ctx context.Context, text, targetLang string) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(c.cfg.ServerURL), "/")
	if base == "" {
		return "", fmt.Errorf("translate: no server_url configured")
	}
	source := strings.TrimSpace(c.cfg.SourceLang)
	if source == "" {
		source = "auto"
	}

	if out, err := c.translateV2(ctx, base, text, targetLang, source); err == nil {
		return out, nil
	}
	return c.translateNative(ctx, base, text, targetLang, source)
}

func (c *Client) translateV2(ctx context.Context, base, text, target, source string) (string, error) {
	var resp translateV2Response
	err := c.postJSON(ctx, base+"/google/language/translate/v2", translateV2Request{
		Q: text, Target: target, Source: source, Format: "text",
	}, &resp)
	if err != nil {
		return "", err
	}
	if len(resp.Data.Translations) == 0 || resp.Data.Translations[0].TranslatedText == "" {
		return "", fmt.Errorf("translate: empty v2 response")
	}
	return stripLeadingPunctuation(resp.Data.Translations[0].TranslatedText), nil
}

func (c *Client) translateNative(ctx context.Context, base, text, target, source string) (string, error) {
	var resp translateNativeResponse
	err := c.postJSON(ctx, base+"/translate", translateNativeRequest{
		From: source, To: target, Text: text, HTML: false,
	}, &resp)
	if err != nil {
		return "", err
	}
	out := resp.Result
	if out == "" {
		out = resp.Translation
	}
	if out == "" {
		out = resp.TranslatedText
	}
	if out == "" {
		return "", fmt.Errorf("translate: empty native response")
	}
	return stripLeadingPunctuation(out), nil
}

func (c *Client) postJSON(ctx context.Context, url string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("translate: endpoint %s returned status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// MaybeTranslate applies the translate-prefix intercept of spec.md §4.5 to a
// final Result's text: if text opens with a recognized trigger, it
// translates the remainder and returns the replacement text. Returns
// ok=false (text unchanged) when the command isn't present, translation is
// disabled, or the backend is unreachable — callers pass the original text
// through untranslated on failure, per spec.md §7 kind 6.
func MaybeTranslate(ctx context.Context, client *Client, enabled bool, text string) (string, bool) {
	if !enabled {
		return text, false
	}
	cmd, ok := ParseCommand(text)
	if !ok || cmd.Content == "" {
		return text, false
	}
	translated, err := client.Translate(ctx, cmd.Content, cmd.TargetLang)
	if err != nil {
		return text, false
	}
	return translated, true
}
