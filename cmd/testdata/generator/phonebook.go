package generator

import (
	"io"
	"math/rand/v2"
	"strconv"
	"strings"
)

// PhonebookGenerator writes contacts as "First LAST","01XXXXXXXXX"
type PhonebookGenerator struct {
	rand     *rand.Rand
	namePool []string // pre-built "First LAST" names
}

var firstNames = []string{
	"Alice", "Alicia", "Bob", "Carol", "Dave", "Erin", "Farhan", "Grace",
	"Hasan", "Imran", "Jamal", "Karim", "Laila", "Mahmud", "Nadia", "Omar",
	"Priya", "Rahim", "Sadia", "Tanvir", "Uma", "Yusuf", "Zara",
}

var lastNames = []string{
	"AKTER", "AHMED", "BEGUM", "CHOWDHURY", "DAS", "HOSSAIN", "ISLAM",
	"KHAN", "MIAH", "RAHMAN", "ROY", "SARKER", "SMITH", "UDDIN",
}

var operatorPrefixes = []string{"013", "014", "015", "016", "017", "018", "019"}

const namePoolSize = 4096

func (g *PhonebookGenerator) Init(r *rand.Rand) {
	g.rand = r

	g.namePool = make([]string, namePoolSize)
	for i := range g.namePool {
		g.namePool[i] = firstNames[r.IntN(len(firstNames))] + " " + lastNames[r.IntN(len(lastNames))]
	}
}

func (g *PhonebookGenerator) number() string {
	var b strings.Builder
	b.WriteString(operatorPrefixes[g.rand.IntN(len(operatorPrefixes))])
	n := strconv.Itoa(g.rand.IntN(1e8))
	b.WriteString(strings.Repeat("0", 8-len(n)))
	b.WriteString(n)
	return b.String()
}

func (g *PhonebookGenerator) WriteLine(w io.Writer) error {
	name := g.namePool[g.rand.IntN(namePoolSize)]
	_, err := io.WriteString(w, `"`+name+`","`+g.number()+`"`+"\n")
	return err
}

func (g *PhonebookGenerator) Description() string {
	return `Phonebook contacts: "First LAST","01XXXXXXXXX"`
}

func (g *PhonebookGenerator) DefaultCount() int64 {
	return 1e5 // 100,000 contacts
}
