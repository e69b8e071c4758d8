package mapping

import (
	"fmt"
	"io"
	"strings"
)

// WriteTo сериализует модель обратно в табличный текстовый формат.
// Комментарии и пустые строки исходного файла не восстанавливаются;
// повторный разбор результата даёт эквивалентную модель.
func (f *File) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, set := range f.Sets {
		n, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			setMarker, set.Name, set.Applicability.Code(),
			strings.Join(set.Categories, ","))
		total += int64(n)
		if err != nil {
			return total, err
		}

		for _, p := range set.Properties {
			if p.SourceAlias != "" {
				n, err = fmt.Fprintf(w, "\t%s\t%s\t%s\n", p.Name, p.Type, p.SourceAlias)
			} else {
				n, err = fmt.Fprintf(w, "\t%s\t%s\n", p.Name, p.Type)
			}
			total += int64(n)
			if err != nil {
				return total, err
			}
		}
	}
	return total, nil
}

func (f *File) String() string {
	var sb strings.Builder
	_, _ = f.WriteTo(&sb)
	return sb.String()
}
