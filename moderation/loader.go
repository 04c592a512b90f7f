package moderation

import (
	"bkalan/errors"
	"bufio"
	"bytes"
	"io/fs"
	"path"
	"strings"

	"github.com/samber/lo"
)

// Dictionary is the merged content of the censored word files, one file per
// language.
type Dictionary struct {
	Words     []string
	Languages []string
}

type DictionaryLoader struct {
	fsys fs.FS
}

func NewDictionaryLoader(fsys fs.FS) *DictionaryLoader {
	return &DictionaryLoader{fsys: fsys}
}

// LoadAll reads every .txt file of dir, one word per line, skipping # comments.
// The file name is the language ("fr.txt" -> "fr"). Words are deduplicated.
func (l *DictionaryLoader) LoadAll(dir string) (*Dictionary, error) {
	entries, err := fs.ReadDir(l.fsys, dir)
	if err != nil {
		return nil, err
	}

	var languages []string
	uniqueWords := make(map[string]struct{})
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		languages = append(languages, strings.TrimSuffix(entry.Name(), ".txt"))

		data, err := fs.ReadFile(l.fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		// Scanner handles \r\n line endings
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" && !strings.HasPrefix(line, "#") {
				uniqueWords[line] = struct{}{}
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
	}

	if len(uniqueWords) == 0 {
		return nil, errors.ErrEmptyWords
	}
	return &Dictionary{Words: lo.Keys(uniqueWords), Languages: languages}, nil
}

// SplitWords parses a comma separated word list.
func SplitWords(list string) []string {
	return lo.FilterMap(strings.Split(list, ","), func(word string, _ int) (string, bool) {
		word = strings.TrimSpace(word)
		return word, word != ""
	})
}
