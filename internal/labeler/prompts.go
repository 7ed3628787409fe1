package labeler

const labelPrompt = `Given this Q&A from a study session, write a concise topic label of 2-6 words in Title Case.
The label should name the main subject or concept being discussed.

Question: %s

Answer (excerpt): %s

Rules:
- Return ONLY the label, nothing else.
- No quotes, no explanation, no trailing punctuation.
- Do not restate or rephrase the question.
- Never answer with punctuation or symbols alone.

Examples of good labels:
- Attention Mechanism
- Python List Comprehension
- React Hooks vs State
- Binary Search Algorithm
- CSS Flexbox Layout

Label:`
